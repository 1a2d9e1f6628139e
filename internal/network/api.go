// Package network - api.go
// REST surface for session lifecycle. The WebSocket hub carries the live
// tick stream; everything request/response shaped lives here.
package network

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/rules"
	"github.com/amornj/medsim-sub000/internal/engine"
	"github.com/amornj/medsim-sub000/internal/platform/metrics"
)

// SnapshotReader serves the last committed snapshot for sessions that are no
// longer (or not yet) resident in this process. Usually the Redis cache.
type SnapshotReader interface {
	Get(ctx context.Context, sessionID string) (*engine.Snapshot, error)
}

// SessionAPI handles scenario listing and session lifecycle over HTTP.
type SessionAPI struct {
	manager   *engine.Manager
	hub       *Hub
	snapshots SnapshotReader
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewSessionAPI creates the REST handler. snapshots may be nil.
func NewSessionAPI(manager *engine.Manager, hub *Hub, snapshots SnapshotReader, log *zap.Logger) *SessionAPI {
	return &SessionAPI{
		manager:   manager,
		hub:       hub,
		snapshots: snapshots,
		logger:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The trainer frontend is served from a different origin in dev.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// CreateSessionRequest is the payload for starting a run.
type CreateSessionRequest struct {
	ScenarioID string           `json:"scenario_id"`
	Scenario   *engine.Scenario `json:"scenario,omitempty"` // inline authored case
	PlayerID   string           `json:"player_id"`
	Mode       *rules.GameMode  `json:"mode,omitempty"`
}

// HandleScenarios lists the builtin teaching cases.
// GET /api/scenarios
func (api *SessionAPI) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.jsonSuccess(w, map[string]interface{}{
		"scenarios": engine.BuiltinScenarios(),
	})
}

// HandleCreateSession starts a new session and returns its ID.
// POST /api/sessions
func (api *SessionAPI) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" {
		api.jsonError(w, "Missing player_id", http.StatusBadRequest)
		return
	}

	var scenario engine.Scenario
	switch {
	case req.Scenario != nil:
		scenario = *req.Scenario
	case req.ScenarioID != "":
		found, ok := engine.FindScenario(req.ScenarioID)
		if !ok {
			api.jsonError(w, "Unknown scenario_id", http.StatusNotFound)
			return
		}
		scenario = found
	default:
		api.jsonError(w, "Missing scenario_id or inline scenario", http.StatusBadRequest)
		return
	}

	mode := rules.DefaultGameMode()
	if req.Mode != nil {
		mode = *req.Mode
	}

	session := api.manager.StartSession(context.Background(), scenario, mode, req.PlayerID)
	metrics.Get().RecordSessionStart()
	api.logger.Info("session created",
		zap.String("session_id", session.ID()),
		zap.String("scenario_id", scenario.ID),
		zap.String("player_id", req.PlayerID))

	api.jsonSuccess(w, map[string]interface{}{
		"session_id": session.ID(),
		"snapshot":   session.Snapshot(),
		"ws_path":    "/ws?session_id=" + session.ID(),
	})
}

// HandleSnapshot returns the latest committed state for a session. Falls back
// to the snapshot cache when the session is not resident here.
// GET /api/sessions/snapshot?session_id=XXX
func (api *SessionAPI) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		api.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	if session, ok := api.manager.Get(sessionID); ok {
		api.jsonSuccess(w, session.Snapshot())
		return
	}
	if api.snapshots != nil {
		snap, err := api.snapshots.Get(r.Context(), sessionID)
		if err != nil {
			api.logger.Error("snapshot cache read failed", zap.Error(err))
		} else if snap != nil {
			api.jsonSuccess(w, snap)
			return
		}
	}
	api.jsonError(w, "Session not found", http.StatusNotFound)
}

// HandleAbandon lets a player walk away from a running session.
// POST /api/sessions/abandon?session_id=XXX
func (api *SessionAPI) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		api.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	out, err := api.manager.AbandonSession(sessionID)
	if err != nil {
		api.jsonError(w, placementErrorMessage(err), http.StatusConflict)
		return
	}
	api.jsonSuccess(w, out)
}

// HandleWebSocket upgrades a connection and binds it to a session.
// GET /ws?session_id=XXX
func (api *SessionAPI) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		api.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}
	if _, ok := api.manager.Get(sessionID); !ok {
		api.jsonError(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(api.hub, api.manager, conn, sessionID)
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes sets up the session API routes.
func (api *SessionAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/scenarios", api.HandleScenarios)
	mux.HandleFunc("/api/sessions", api.HandleCreateSession)
	mux.HandleFunc("/api/sessions/snapshot", api.HandleSnapshot)
	mux.HandleFunc("/api/sessions/abandon", api.HandleAbandon)
	mux.HandleFunc("/ws", api.HandleWebSocket)
}

// jsonError sends an error response.
func (api *SessionAPI) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func (api *SessionAPI) jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(data)
}

package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
	"github.com/amornj/medsim-sub000/internal/engine"
)

func newTestAPI(t *testing.T) (*SessionAPI, *engine.Manager) {
	t.Helper()
	manager := engine.NewManager(equipment.DefaultCatalog(), zap.NewNop())
	t.Cleanup(manager.Shutdown)
	hub := NewHub(zap.NewNop())
	return NewSessionAPI(manager, hub, nil, zap.NewNop()), manager
}

func TestHandleScenarios(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scenarios", nil)
	rr := httptest.NewRecorder()
	api.HandleScenarios(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Scenarios []engine.Scenario `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Scenarios)

	// Wrong method is rejected, not silently served.
	rr = httptest.NewRecorder()
	api.HandleScenarios(rr, httptest.NewRequest(http.MethodPost, "/api/scenarios", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleCreateSessionByID(t *testing.T) {
	api, manager := newTestAPI(t)

	scenarioID := engine.BuiltinScenarios()[0].ID
	payload, _ := json.Marshal(CreateSessionRequest{ScenarioID: scenarioID, PlayerID: "player-1"})

	rr := httptest.NewRecorder()
	api.HandleCreateSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		SessionID string          `json:"session_id"`
		Snapshot  engine.Snapshot `json:"snapshot"`
		WSPath    string          `json:"ws_path"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	assert.Equal(t, engine.StateRunning, body.Snapshot.State)
	assert.Contains(t, body.WSPath, body.SessionID)

	_, ok := manager.Get(body.SessionID)
	assert.True(t, ok, "the session must be resident after creation")
}

func TestHandleCreateSessionValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	// Missing player.
	payload, _ := json.Marshal(CreateSessionRequest{ScenarioID: "resp-failure-01"})
	rr := httptest.NewRecorder()
	api.HandleCreateSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Missing scenario reference.
	payload, _ = json.Marshal(CreateSessionRequest{PlayerID: "player-1"})
	rr = httptest.NewRecorder()
	api.HandleCreateSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown scenario ID.
	payload, _ = json.Marshal(CreateSessionRequest{ScenarioID: "nope", PlayerID: "player-1"})
	rr = httptest.NewRecorder()
	api.HandleCreateSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCreateSessionInlineScenario(t *testing.T) {
	api, _ := newTestAPI(t)

	inline := engine.BuiltinScenarios()[0]
	inline.ID = "custom-inline"
	payload, _ := json.Marshal(CreateSessionRequest{Scenario: &inline, PlayerID: "player-1"})

	rr := httptest.NewRecorder()
	api.HandleCreateSession(rr, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleSnapshot(t *testing.T) {
	api, manager := newTestAPI(t)
	scenario := engine.BuiltinScenarios()[0]
	s := manager.StartSession(context.Background(), scenario, rules.DefaultGameMode(), "player-1")

	rr := httptest.NewRecorder()
	api.HandleSnapshot(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/snapshot?session_id="+s.ID(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, s.ID(), snap.SessionID)

	rr = httptest.NewRecorder()
	api.HandleSnapshot(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/snapshot?session_id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	api.HandleSnapshot(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/snapshot", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// cachedSnapshots is a canned SnapshotReader standing in for Redis.
type cachedSnapshots map[string]*engine.Snapshot

func (c cachedSnapshots) Get(_ context.Context, sessionID string) (*engine.Snapshot, error) {
	return c[sessionID], nil
}

func TestHandleSnapshotFallsBackToCache(t *testing.T) {
	manager := engine.NewManager(equipment.DefaultCatalog(), zap.NewNop())
	t.Cleanup(manager.Shutdown)
	cached := cachedSnapshots{
		"gone-session": {SessionID: "gone-session", State: engine.StateSurvived},
	}
	api := NewSessionAPI(manager, NewHub(zap.NewNop()), cached, zap.NewNop())

	rr := httptest.NewRecorder()
	api.HandleSnapshot(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/snapshot?session_id=gone-session", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, engine.StateSurvived, snap.State)
}

func TestHandleAbandon(t *testing.T) {
	api, manager := newTestAPI(t)
	s := manager.StartSession(context.Background(), engine.BuiltinScenarios()[0], rules.DefaultGameMode(), "player-1")

	rr := httptest.NewRecorder()
	api.HandleAbandon(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/abandon?session_id="+s.ID(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, engine.StateAbandoned, s.State())

	// A second abandon hits a finished session.
	rr = httptest.NewRecorder()
	api.HandleAbandon(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/abandon?session_id="+s.ID(), nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

// Package network - debrief.go
// Post-session review endpoint. Instructors replay the immutable
// intervention timeline against the final score.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/events"
	"github.com/amornj/medsim-sub000/internal/infra/storage"
)

// DebriefHandler provides the session review API on top of durable storage,
// so finished sessions stay reviewable after the engine has let them go.
type DebriefHandler struct {
	eventRepo   storage.EventRepository
	outcomeRepo storage.OutcomeRepository
	logger      *zap.Logger
}

// NewDebriefHandler creates a new debrief handler.
func NewDebriefHandler(er storage.EventRepository, or storage.OutcomeRepository, log *zap.Logger) *DebriefHandler {
	return &DebriefHandler{
		eventRepo:   er,
		outcomeRepo: or,
		logger:      log,
	}
}

// TimelineEntry is one reviewed action in the debrief.
type TimelineEntry struct {
	ID            string                 `json:"id"`
	Timestamp     string                 `json:"timestamp"`
	Offset        string                 `json:"offset"` // since first event
	Type          string                 `json:"type"`
	EquipmentType string                 `json:"equipment_type,omitempty"`
	Summary       string                 `json:"summary"`
	Impact        string                 `json:"impact"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// DebriefResponse is the API response for a session review.
type DebriefResponse struct {
	SessionID   string                 `json:"session_id"`
	TotalEvents int                    `json:"total_events"`
	FilteredBy  string                 `json:"filtered_by,omitempty"`
	GeneratedAt string                 `json:"generated_at"`
	Outcome     *storage.OutcomeRecord `json:"outcome,omitempty"`
	Timeline    []TimelineEntry        `json:"timeline"`
}

// HandleReplay returns the reviewed timeline for a session.
// GET /api/debrief/replay?session_id=XXX&type=EQUIPMENT_PLACED&interventions_only=true
func (dh *DebriefHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		dh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		dh.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	eventType := r.URL.Query().Get("type")
	interventionsOnly := r.URL.Query().Get("interventions_only") == "true"

	records, err := dh.eventRepo.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		dh.logger.Error("debrief event load failed", zap.Error(err))
		dh.jsonError(w, "Failed to load session events", http.StatusInternalServerError)
		return
	}

	var timeline []TimelineEntry
	filterDesc := ""
	var firstAt time.Time
	for i, rec := range records {
		if i == 0 {
			firstAt = rec.Timestamp
		}
		if eventType != "" && rec.EventType != eventType {
			filterDesc = "type=" + eventType
			continue
		}
		if interventionsOnly && !isIntervention(rec.EventType) {
			filterDesc = "interventions_only"
			continue
		}
		timeline = append(timeline, dh.toTimelineEntry(rec, firstAt))
	}

	outcome, err := dh.outcomeRepo.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		dh.logger.Warn("debrief outcome load failed", zap.Error(err))
	}

	response := DebriefResponse{
		SessionID:   sessionID,
		TotalEvents: len(timeline),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Outcome:     outcome,
		Timeline:    timeline,
	}

	dh.logger.Info("debrief served",
		zap.String("session_id", sessionID),
		zap.Int("events", len(timeline)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleHistory lists a player's past outcomes.
// GET /api/debrief/history?player_id=XXX&limit=20
func (dh *DebriefHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		dh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		dh.jsonError(w, "Missing player_id", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	outcomes, err := dh.outcomeRepo.ListByPlayer(r.Context(), playerID, limit)
	if err != nil {
		dh.logger.Error("debrief history load failed", zap.Error(err))
		dh.jsonError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"player_id": playerID,
		"count":     len(outcomes),
		"outcomes":  outcomes,
	})
}

// HandleStats returns aggregate counters for one session's log.
// GET /api/debrief/stats?session_id=XXX
func (dh *DebriefHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		dh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		dh.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	records, err := dh.eventRepo.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		dh.jsonError(w, "Failed to load session events", http.StatusInternalServerError)
		return
	}

	stats := map[string]int{
		"total_events":  len(records),
		"placements":    0,
		"removals":      0,
		"adjustments":   0,
		"shocks":        0,
		"malfunctions":  0,
		"vitals_audits": 0,
	}
	for _, rec := range records {
		switch events.EventType(rec.EventType) {
		case events.EventTypeEquipmentPlaced:
			stats["placements"]++
		case events.EventTypeEquipmentRemoved:
			stats["removals"]++
		case events.EventTypeSettingsChanged:
			stats["adjustments"]++
		case events.EventTypeShockDelivered:
			stats["shocks"]++
		case events.EventTypeMalfunction:
			stats["malfunctions"]++
		case events.EventTypeVitalsCommitted:
			stats["vitals_audits"]++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id":   sessionID,
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// RegisterRoutes sets up the debrief API routes.
func (dh *DebriefHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/debrief/replay", dh.HandleReplay)
	mux.HandleFunc("/api/debrief/history", dh.HandleHistory)
	mux.HandleFunc("/api/debrief/stats", dh.HandleStats)
}

// toTimelineEntry transforms a stored event into the review format.
func (dh *DebriefHandler) toTimelineEntry(rec storage.SessionEventRecord, firstAt time.Time) TimelineEntry {
	return TimelineEntry{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp.Format(time.RFC3339),
		Offset:        rec.Timestamp.Sub(firstAt).Round(time.Second).String(),
		Type:          rec.EventType,
		EquipmentType: rec.EquipmentType,
		Summary:       summarizeEvent(rec),
		Impact:        classifyImpact(rec.EventType),
		Details:       rec.Payload,
	}
}

func isIntervention(eventType string) bool {
	switch events.EventType(eventType) {
	case events.EventTypeEquipmentPlaced, events.EventTypeEquipmentRemoved,
		events.EventTypeSettingsChanged, events.EventTypeShockDelivered:
		return true
	}
	return false
}

// summarizeEvent creates a human-readable line for the review timeline.
func summarizeEvent(rec storage.SessionEventRecord) string {
	switch events.EventType(rec.EventType) {
	case events.EventTypeEquipmentPlaced:
		return "Placed " + rec.EquipmentType + "."
	case events.EventTypeEquipmentRemoved:
		return "Removed " + rec.EquipmentType + "."
	case events.EventTypeSettingsChanged:
		return "Adjusted " + rec.EquipmentType + " settings."
	case events.EventTypeShockDelivered:
		return "Delivered a defibrillator shock."
	case events.EventTypeMalfunction:
		return "Equipment malfunctioned on delivery: " + rec.EquipmentType + "."
	case events.EventTypeVitalsCommitted:
		return "Vitals audit point."
	case events.EventTypePatientDied:
		return "The patient died."
	case events.EventTypePatientSurvived:
		return "The patient survived."
	case events.EventTypeSessionAbandoned:
		return "The session was abandoned."
	default:
		return "Unrecognized event."
	}
}

// classifyImpact tags entries so the frontend can color the timeline.
func classifyImpact(eventType string) string {
	switch events.EventType(eventType) {
	case events.EventTypeEquipmentPlaced, events.EventTypeShockDelivered,
		events.EventTypeSettingsChanged, events.EventTypePatientSurvived:
		return "POSITIVE"
	case events.EventTypeMalfunction, events.EventTypePatientDied,
		events.EventTypeSessionAbandoned:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

// jsonError sends an error response.
func (dh *DebriefHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

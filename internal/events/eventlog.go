// Package events provides the append-only session log: every intervention
// the player makes and every terminal outcome the engine produces lands here
// in order. The scoring engine replays it instead of keeping running counters.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType defines the category of a session event.
type EventType string

const (
	EventTypeEquipmentPlaced  EventType = "EQUIPMENT_PLACED"
	EventTypeEquipmentRemoved EventType = "EQUIPMENT_REMOVED"
	EventTypeSettingsChanged  EventType = "SETTINGS_CHANGED"
	EventTypeShockDelivered   EventType = "SHOCK_DELIVERED"
	EventTypeMalfunction      EventType = "EQUIPMENT_MALFUNCTION"
	EventTypeVitalsCommitted  EventType = "VITALS_COMMITTED"
	EventTypePatientDied      EventType = "PATIENT_DIED"
	EventTypePatientSurvived  EventType = "PATIENT_SURVIVED"
	EventTypeSessionAbandoned EventType = "SESSION_ABANDONED"
)

// SessionEvent is an immutable record of something that happened in a run.
type SessionEvent struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Type          EventType   `json:"type"`
	EquipmentType string      `json:"equipment_type,omitempty"`
	EquipmentID   string      `json:"equipment_id,omitempty"`
	Payload       interface{} `json:"payload,omitempty"`
}

// IsIntervention reports whether the event counts as a player intervention
// for scoring purposes. Malfunctions are logged but are the machine's fault,
// not a player choice.
func (e SessionEvent) IsIntervention() bool {
	switch e.Type {
	case EventTypeEquipmentPlaced, EventTypeEquipmentRemoved,
		EventTypeSettingsChanged, EventTypeShockDelivered:
		return true
	}
	return false
}

// Persister defines how an event is durably stored. Persistence failures are
// logged by the event log, never fatal to the simulation.
type Persister interface {
	Persist(event SessionEvent) error
}

// EventLog is the in-memory append-only log for one session.
type EventLog struct {
	mu        sync.RWMutex
	events    []SessionEvent
	persister Persister
	logger    *zap.Logger
}

// NewEventLog creates a new event log with an optional persister. A nil
// logger is replaced with a no-op one.
func NewEventLog(persister Persister, logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{
		events:    make([]SessionEvent, 0),
		persister: persister,
		logger:    logger,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event SessionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister := el.persister
	el.mu.Unlock()

	if persister != nil {
		// Write through outside the lock; the log stays authoritative even
		// if the store is down.
		go func(e SessionEvent) {
			if err := persister.Persist(e); err != nil {
				el.logger.Warn("event write-through failed",
					zap.String("session_id", e.SessionID),
					zap.String("event_id", e.ID),
					zap.String("event_type", string(e.Type)),
					zap.Error(err),
				)
			}
		}(event)
	}
}

// Replay returns the full ordered history of events.
func (el *EventLog) Replay() []SessionEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]SessionEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Interventions returns only the player-intervention entries, in order.
func (el *EventLog) Interventions() []SessionEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	var out []SessionEvent
	for _, e := range el.events {
		if e.IsIntervention() {
			out = append(out, e)
		}
	}
	return out
}

// GetByType returns all events of one type, in order.
func (el *EventLog) GetByType(t EventType) []SessionEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	var out []SessionEvent
	for _, e := range el.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

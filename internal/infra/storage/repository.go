// Package storage provides the persistence layer for the simulator.
// This package implements the repository pattern to keep the domain pure:
// records here mirror the domain structures, and thin adapters in cmd/ do
// the translation, so the engine never imports infrastructure.
package storage

import (
	"context"
	"time"
)

// SessionEventRecord mirrors an events.SessionEvent for persistence.
type SessionEventRecord struct {
	ID            string                 `json:"id" db:"id"`
	SessionID     string                 `json:"session_id" db:"session_id"`
	Timestamp     time.Time              `json:"timestamp" db:"timestamp"`
	EventType     string                 `json:"event_type" db:"event_type"`
	EquipmentType string                 `json:"equipment_type" db:"equipment_type"`
	EquipmentID   string                 `json:"equipment_id" db:"equipment_id"`
	Payload       map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository is the durable side of the session event log.
type EventRepository interface {
	// Append adds an event to the immutable ledger.
	Append(ctx context.Context, event SessionEventRecord) error

	// GetBySessionID retrieves all events for one session, in order.
	GetBySessionID(ctx context.Context, sessionID string) ([]SessionEventRecord, error)

	// GetByEventType retrieves all events of one type for a session.
	GetByEventType(ctx context.Context, sessionID, eventType string) ([]SessionEventRecord, error)
}

// OutcomeRecord is the terminal result of one session.
type OutcomeRecord struct {
	SessionID          string        `json:"session_id" db:"session_id"`
	ScenarioID         string        `json:"scenario_id" db:"scenario_id"`
	PlayerID           string        `json:"player_id" db:"player_id"`
	Outcome            string        `json:"outcome" db:"outcome"`
	Cause              string        `json:"cause" db:"cause"`
	Speed              int           `json:"speed" db:"speed"`
	BestPractices      int           `json:"best_practices" db:"best_practices"`
	ResourceEfficiency int           `json:"resource_efficiency" db:"resource_efficiency"`
	OutcomeScore       int           `json:"outcome_score" db:"outcome_score"`
	Total              int           `json:"total" db:"total"`
	Grade              string        `json:"grade" db:"grade"`
	Duration           time.Duration `json:"duration" db:"duration_ms"`
	EndedAt            time.Time     `json:"ended_at" db:"ended_at"`
}

// OutcomeRepository stores terminal session records.
type OutcomeRepository interface {
	Save(ctx context.Context, rec OutcomeRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*OutcomeRecord, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]OutcomeRecord, error)
}

// PlayerProgress is the running per-player tally that used to live in
// browser-local storage; here it is an explicit injected store.
type PlayerProgress struct {
	PlayerID       string    `json:"player_id" db:"player_id"`
	SessionsPlayed int       `json:"sessions_played" db:"sessions_played"`
	PatientsSaved  int       `json:"patients_saved" db:"patients_saved"`
	PatientsLost   int       `json:"patients_lost" db:"patients_lost"`
	Abandoned      int       `json:"abandoned" db:"abandoned"`
	BestScore      int       `json:"best_score" db:"best_score"`
	TotalScore     int       `json:"total_score" db:"total_score"`
	LastPlayedAt   time.Time `json:"last_played_at" db:"last_played_at"`
}

// PlayerProgressStore is the get/update contract for player stats.
type PlayerProgressStore interface {
	Get(ctx context.Context, playerID string) (*PlayerProgress, error)
	// Update folds one finished session into the tally.
	Update(ctx context.Context, playerID string, outcome string, score int, at time.Time) error
}

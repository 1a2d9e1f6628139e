package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event SessionEventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO session_events (id, session_id, timestamp, event_type, equipment_type, equipment_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp, event.EventType,
		event.EquipmentType, event.EquipmentID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]SessionEventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionEventRecord
	for rows.Next() {
		var e SessionEventRecord
		var payloadStr string
		err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.EventType,
			&e.EquipmentType, &e.EquipmentID, &payloadStr)
		if err != nil {
			return nil, err
		}
		if payloadStr != "" && payloadStr != "null" {
			if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetBySessionID(ctx context.Context, sessionID string) ([]SessionEventRecord, error) {
	query := `SELECT id, session_id, timestamp, event_type, equipment_type, equipment_id, payload FROM session_events WHERE session_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, sessionID, eventType string) ([]SessionEventRecord, error) {
	query := `SELECT id, session_id, timestamp, event_type, equipment_type, equipment_id, payload FROM session_events WHERE session_id = ? AND event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

// ---------------------------------------------------------
// SQLiteOutcomeRepository
// ---------------------------------------------------------

type SQLiteOutcomeRepository struct {
	db *sql.DB
}

func NewSQLiteOutcomeRepository(db *sql.DB) *SQLiteOutcomeRepository {
	return &SQLiteOutcomeRepository{db: db}
}

func (r *SQLiteOutcomeRepository) Save(ctx context.Context, rec OutcomeRecord) error {
	query := `
		INSERT INTO session_outcomes (session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			outcome=excluded.outcome,
			cause=excluded.cause,
			speed=excluded.speed,
			best_practices=excluded.best_practices,
			resource_efficiency=excluded.resource_efficiency,
			outcome_score=excluded.outcome_score,
			total=excluded.total,
			grade=excluded.grade,
			duration_ms=excluded.duration_ms,
			ended_at=excluded.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID, rec.ScenarioID, rec.PlayerID, rec.Outcome, rec.Cause,
		rec.Speed, rec.BestPractices, rec.ResourceEfficiency, rec.OutcomeScore,
		rec.Total, rec.Grade, rec.Duration.Milliseconds(), rec.EndedAt,
	)
	return err
}

func (r *SQLiteOutcomeRepository) GetBySessionID(ctx context.Context, sessionID string) (*OutcomeRecord, error) {
	query := `SELECT session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at FROM session_outcomes WHERE session_id = ?`
	var rec OutcomeRecord
	var durationMs int64
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.ScenarioID, &rec.PlayerID, &rec.Outcome, &rec.Cause,
		&rec.Speed, &rec.BestPractices, &rec.ResourceEfficiency, &rec.OutcomeScore,
		&rec.Total, &rec.Grade, &durationMs, &rec.EndedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

func (r *SQLiteOutcomeRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]OutcomeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at FROM session_outcomes WHERE player_id = ? ORDER BY ended_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var rec OutcomeRecord
		var durationMs int64
		if err := rows.Scan(&rec.SessionID, &rec.ScenarioID, &rec.PlayerID, &rec.Outcome, &rec.Cause,
			&rec.Speed, &rec.BestPractices, &rec.ResourceEfficiency, &rec.OutcomeScore,
			&rec.Total, &rec.Grade, &durationMs, &rec.EndedAt); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------
// SQLiteProgressStore
// ---------------------------------------------------------

type SQLiteProgressStore struct {
	db *sql.DB
}

func NewSQLiteProgressStore(db *sql.DB) *SQLiteProgressStore {
	return &SQLiteProgressStore{db: db}
}

func (s *SQLiteProgressStore) Get(ctx context.Context, playerID string) (*PlayerProgress, error) {
	query := `SELECT player_id, sessions_played, patients_saved, patients_lost, abandoned, best_score, total_score, last_played_at FROM player_progress WHERE player_id = ?`
	var p PlayerProgress
	err := s.db.QueryRowContext(ctx, query, playerID).Scan(
		&p.PlayerID, &p.SessionsPlayed, &p.PatientsSaved, &p.PatientsLost,
		&p.Abandoned, &p.BestScore, &p.TotalScore, &p.LastPlayedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteProgressStore) Update(ctx context.Context, playerID string, outcome string, score int, at time.Time) error {
	saved, lost, abandoned := outcomeCounters(outcome)
	query := `
		INSERT INTO player_progress (player_id, sessions_played, patients_saved, patients_lost, abandoned, best_score, total_score, last_played_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			sessions_played = sessions_played + 1,
			patients_saved = patients_saved + excluded.patients_saved,
			patients_lost = patients_lost + excluded.patients_lost,
			abandoned = abandoned + excluded.abandoned,
			best_score = MAX(best_score, excluded.best_score),
			total_score = total_score + excluded.total_score,
			last_played_at = excluded.last_played_at
	`
	_, err := s.db.ExecContext(ctx, query, playerID, saved, lost, abandoned, score, score, at)
	return err
}

// outcomeCounters translates a terminal state into tally increments.
func outcomeCounters(outcome string) (saved, lost, abandoned int) {
	switch outcome {
	case "patient_survived":
		saved = 1
	case "patient_died":
		lost = 1
	case "abandoned":
		abandoned = 1
	}
	return
}

// Package storage - postgres.go
// PostgreSQL implementations of the repositories, for deployments where many
// simulator instances share one store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresConfig carries the connection settings for NewPostgresDB.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN renders the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NewPostgresDB opens and pings a PostgreSQL connection pool.
func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresEventRepository implements EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Append(ctx context.Context, event SessionEventRecord) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO session_events (id, session_id, timestamp, event_type, equipment_type, equipment_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp, event.EventType,
		event.EquipmentType, event.EquipmentID, payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]SessionEventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionEventRecord
	for rows.Next() {
		var e SessionEventRecord
		var payloadBytes []byte
		err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.EventType,
			&e.EquipmentType, &e.EquipmentID, &payloadBytes)
		if err != nil {
			return nil, err
		}
		if len(payloadBytes) > 0 {
			if err := json.Unmarshal(payloadBytes, &e.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresEventRepository) GetBySessionID(ctx context.Context, sessionID string) ([]SessionEventRecord, error) {
	query := `SELECT id, session_id, timestamp, event_type, equipment_type, equipment_id, payload FROM session_events WHERE session_id = $1 ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *PostgresEventRepository) GetByEventType(ctx context.Context, sessionID, eventType string) ([]SessionEventRecord, error) {
	query := `SELECT id, session_id, timestamp, event_type, equipment_type, equipment_id, payload FROM session_events WHERE session_id = $1 AND event_type = $2 ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

// PostgresOutcomeRepository implements OutcomeRepository using PostgreSQL.
type PostgresOutcomeRepository struct {
	db *sql.DB
}

func NewPostgresOutcomeRepository(db *sql.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

func (r *PostgresOutcomeRepository) Save(ctx context.Context, rec OutcomeRecord) error {
	query := `
		INSERT INTO session_outcomes (session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT(session_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			cause = EXCLUDED.cause,
			speed = EXCLUDED.speed,
			best_practices = EXCLUDED.best_practices,
			resource_efficiency = EXCLUDED.resource_efficiency,
			outcome_score = EXCLUDED.outcome_score,
			total = EXCLUDED.total,
			grade = EXCLUDED.grade,
			duration_ms = EXCLUDED.duration_ms,
			ended_at = EXCLUDED.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID, rec.ScenarioID, rec.PlayerID, rec.Outcome, rec.Cause,
		rec.Speed, rec.BestPractices, rec.ResourceEfficiency, rec.OutcomeScore,
		rec.Total, rec.Grade, rec.Duration.Milliseconds(), rec.EndedAt,
	)
	return err
}

func (r *PostgresOutcomeRepository) GetBySessionID(ctx context.Context, sessionID string) (*OutcomeRecord, error) {
	query := `SELECT session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at FROM session_outcomes WHERE session_id = $1`
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

func (r *PostgresOutcomeRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]OutcomeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT session_id, scenario_id, player_id, outcome, cause, speed, best_practices, resource_efficiency, outcome_score, total, grade, duration_ms, ended_at FROM session_outcomes WHERE player_id = $1 ORDER BY ended_at DESC LIMIT $2`
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

// PostgresProgressStore implements PlayerProgressStore using PostgreSQL.
type PostgresProgressStore struct {
	db *sql.DB
}

func NewPostgresProgressStore(db *sql.DB) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

func (s *PostgresProgressStore) Get(ctx context.Context, playerID string) (*PlayerProgress, error) {
	query := `SELECT player_id, sessions_played, patients_saved, patients_lost, abandoned, best_score, total_score, last_played_at FROM player_progress WHERE player_id = $1`
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

func (s *PostgresProgressStore) Update(ctx context.Context, playerID string, outcome string, score int, at time.Time) error {
	saved, lost, abandoned := outcomeCounters(outcome)
	query := `
		INSERT INTO player_progress (player_id, sessions_played, patients_saved, patients_lost, abandoned, best_score, total_score, last_played_at)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(player_id) DO UPDATE SET
			sessions_played = player_progress.sessions_played + 1,
			patients_saved = player_progress.patients_saved + EXCLUDED.patients_saved,
			patients_lost = player_progress.patients_lost + EXCLUDED.patients_lost,
			abandoned = player_progress.abandoned + EXCLUDED.abandoned,
			best_score = GREATEST(player_progress.best_score, EXCLUDED.best_score),
			total_score = player_progress.total_score + EXCLUDED.total_score,
			last_played_at = EXCLUDED.last_played_at
	`
	_, err := s.db.ExecContext(ctx, query, playerID, saved, lost, abandoned, score, score, at)
	return err
}

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite opens the local SQLite database and creates the schemas for the
// session event ledger, terminal outcomes and player progress.
func InitSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL,
			equipment_type TEXT,
			equipment_id TEXT,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON session_events(session_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS session_outcomes (
			session_id TEXT PRIMARY KEY,
			scenario_id TEXT,
			player_id TEXT,
			outcome TEXT NOT NULL,
			cause TEXT,
			speed INTEGER,
			best_practices INTEGER,
			resource_efficiency INTEGER,
			outcome_score INTEGER,
			total INTEGER,
			grade TEXT,
			duration_ms INTEGER,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS player_progress (
			player_id TEXT PRIMARY KEY,
			sessions_played INTEGER NOT NULL DEFAULT 0,
			patients_saved INTEGER NOT NULL DEFAULT 0,
			patients_lost INTEGER NOT NULL DEFAULT 0,
			abandoned INTEGER NOT NULL DEFAULT 0,
			best_score INTEGER NOT NULL DEFAULT 0,
			total_score INTEGER NOT NULL DEFAULT 0,
			last_played_at TIMESTAMP
		)`,
	}
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

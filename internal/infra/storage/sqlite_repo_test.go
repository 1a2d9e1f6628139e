package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "medsim-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEventAppendAndReadBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	first := SessionEventRecord{
		ID:            "evt-1",
		SessionID:     "sess-1",
		Timestamp:     base,
		EventType:     "EQUIPMENT_PLACED",
		EquipmentType: "bipap",
		EquipmentID:   "eq-1",
		Payload:       map[string]interface{}{"fio2": 80.0},
	}
	second := SessionEventRecord{
		ID:        "evt-2",
		SessionID: "sess-1",
		Timestamp: base.Add(30 * time.Second),
		EventType: "SHOCK_DELIVERED",
	}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))
	// Events for another session must not leak in.
	require.NoError(t, repo.Append(ctx, SessionEventRecord{
		ID: "evt-3", SessionID: "sess-2", Timestamp: base, EventType: "EQUIPMENT_PLACED",
	}))

	got, err := repo.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, "bipap", got[0].EquipmentType)
	assert.Equal(t, 80.0, got[0].Payload["fio2"])
	assert.Equal(t, "evt-2", got[1].ID)

	shocks, err := repo.GetByEventType(ctx, "sess-1", "SHOCK_DELIVERED")
	require.NoError(t, err)
	require.Len(t, shocks, 1)
	assert.Equal(t, "evt-2", shocks[0].ID)
}

func TestEventEmptyPayload(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, SessionEventRecord{
		ID: "evt-1", SessionID: "sess-1", Timestamp: time.Now().UTC(), EventType: "EQUIPMENT_REMOVED",
	}))

	got, err := repo.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Payload)
}

func TestOutcomeSaveIsUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteOutcomeRepository(db)
	ctx := context.Background()
	endedAt := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

	rec := OutcomeRecord{
		SessionID:          "sess-1",
		ScenarioID:         "resp-failure-01",
		PlayerID:           "player-1",
		Outcome:            "patient_survived",
		Speed:              25,
		BestPractices:      20,
		ResourceEfficiency: 17,
		OutcomeScore:       16,
		Total:              78,
		Grade:              "C",
		Duration:           8 * time.Minute,
		EndedAt:            endedAt,
	}
	require.NoError(t, repo.Save(ctx, rec))

	// A retried save with corrected numbers replaces, never duplicates.
	rec.Total = 81
	rec.Grade = "B"
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 81, got.Total)
	assert.Equal(t, "B", got.Grade)
	assert.Equal(t, 8*time.Minute, got.Duration)

	missing, err := repo.GetBySessionID(ctx, "sess-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByPlayerNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteOutcomeRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, OutcomeRecord{
			SessionID: "sess-" + string(rune('a'+i)),
			PlayerID:  "player-1",
			Outcome:   "patient_survived",
			Total:     70 + i,
			Grade:     "C",
			EndedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Save(ctx, OutcomeRecord{
		SessionID: "sess-other", PlayerID: "player-2", Outcome: "patient_died", EndedAt: base,
	}))

	got, err := repo.ListByPlayer(ctx, "player-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sess-c", got[0].SessionID)
	assert.Equal(t, "sess-b", got[1].SessionID)

	all, err := repo.ListByPlayer(ctx, "player-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestProgressUpdateFoldsOutcomes(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLiteProgressStore(db)
	ctx := context.Background()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	missing, err := store.Get(ctx, "player-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Update(ctx, "player-1", "patient_survived", 85, base))
	require.NoError(t, store.Update(ctx, "player-1", "patient_died", 40, base.Add(time.Hour)))
	require.NoError(t, store.Update(ctx, "player-1", "abandoned", 10, base.Add(2*time.Hour)))

	p, err := store.Get(ctx, "player-1")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 3, p.SessionsPlayed)
	assert.Equal(t, 1, p.PatientsSaved)
	assert.Equal(t, 1, p.PatientsLost)
	assert.Equal(t, 1, p.Abandoned)
	// Best score keeps the high-water mark while total keeps accumulating.
	assert.Equal(t, 85, p.BestScore)
	assert.Equal(t, 135, p.TotalScore)
}

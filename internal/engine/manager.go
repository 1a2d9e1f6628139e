package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
	"github.com/amornj/medsim-sub000/internal/events"
)

// OutcomeStore persists terminal session records.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, out Outcome) error
}

// ProgressRecorder folds an outcome into the player's running progress.
// Injected rather than ambient so the simulation core has no hidden global
// state behind it.
type ProgressRecorder interface {
	RecordOutcome(ctx context.Context, playerID string, out Outcome) error
}

// SnapshotSink receives committed-tick snapshots (the WebSocket hub).
type SnapshotSink interface {
	Publish(snap Snapshot)
}

// SnapshotCache keeps the latest snapshot per session for cheap reads.
type SnapshotCache interface {
	Store(ctx context.Context, snap Snapshot) error
}

// Manager runs many independent sessions. Sessions share nothing but the
// injected collaborators, so they are safe to run in parallel.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession

	catalog   equipment.Catalog
	persister events.Persister
	outcomes  OutcomeStore
	progress  ProgressRecorder
	sink      SnapshotSink
	cache     SnapshotCache
	tickRate  time.Duration
	logger    *zap.Logger
}

type managedSession struct {
	session *Session
	clock   *Clock
	cancel  context.CancelFunc
}

// stop halts the clock synchronously and releases the session context.
func (ms *managedSession) stop() {
	ms.clock.Stop()
	ms.cancel()
}

// ManagerOption configures optional collaborators.
type ManagerOption func(*Manager)

// WithOutcomeStore wires outcome persistence.
func WithOutcomeStore(s OutcomeStore) ManagerOption {
	return func(m *Manager) { m.outcomes = s }
}

// WithProgressRecorder wires player progress bookkeeping.
func WithProgressRecorder(p ProgressRecorder) ManagerOption {
	return func(m *Manager) { m.progress = p }
}

// WithSnapshotSink wires the live broadcast side.
func WithSnapshotSink(s SnapshotSink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithSnapshotCache wires the latest-state cache.
func WithSnapshotCache(c SnapshotCache) ManagerOption {
	return func(m *Manager) { m.cache = c }
}

// WithEventPersister wires durable storage for session event logs.
func WithEventPersister(p events.Persister) ManagerOption {
	return func(m *Manager) { m.persister = p }
}

// WithTickRate overrides the default clock period (used by stress tooling).
func WithTickRate(d time.Duration) ManagerOption {
	return func(m *Manager) { m.tickRate = d }
}

// NewManager creates a session manager.
func NewManager(catalog equipment.Catalog, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*managedSession),
		catalog:  catalog,
		tickRate: DefaultTickRate,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSession loads a scenario and starts its clock. The returned session
// is already ticking.
func (m *Manager) StartSession(ctx context.Context, scenario Scenario, mode rules.GameMode, playerID string) *Session {
	seed := time.Now().UnixNano()
	session := NewSession(scenario, mode, m.catalog, m.persister, seed, playerID, m.logger)

	session.SetTickListener(func(snap Snapshot) {
		if m.sink != nil {
			m.sink.Publish(snap)
		}
		if m.cache != nil {
			cctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := m.cache.Store(cctx, snap); err != nil {
				m.logger.Warn("snapshot cache write failed",
					zap.String("session_id", snap.SessionID),
					zap.Error(err),
				)
			}
		}
	})

	session.SetOutcomeListener(func(out Outcome) {
		m.handleOutcome(out)
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	clock := NewClock(session, m.tickRate, m.logger)

	m.mu.Lock()
	m.sessions[session.ID()] = &managedSession{session: session, clock: clock, cancel: cancel}
	m.mu.Unlock()

	go clock.Start(sessionCtx)

	m.logger.Info("session started",
		zap.String("session_id", session.ID()),
		zap.String("scenario_id", scenario.ID),
		zap.String("condition_tag", scenario.ConditionTag),
		zap.String("player_id", playerID),
	)
	return session
}

// Get returns a running or recently ended session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// Sessions returns all managed sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, ms := range m.sessions {
		out = append(out, ms.session)
	}
	return out
}

// AbandonSession stops a session on the player's behalf. Cancellation is
// atomic with respect to mutation: the clock halts first, and any tick
// already scheduled lands as a no-op on the terminated session.
func (m *Manager) AbandonSession(id string) (Outcome, error) {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Outcome{}, ErrNotFound
	}

	ms.stop()
	out, err := ms.session.Abandon()
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Shutdown cancels every session clock. In-flight ticks become no-ops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.sessions {
		ms.stop()
	}
}

// handleOutcome runs on the session's outcome goroutine: persistence and
// progress, best effort, never touching session internals again.
func (m *Manager) handleOutcome(out Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.Lock()
	if ms, ok := m.sessions[out.SessionID]; ok {
		ms.stop()
	}
	m.mu.Unlock()

	if m.outcomes != nil {
		if err := m.outcomes.SaveOutcome(ctx, out); err != nil {
			m.logger.Error("failed to persist session outcome",
				zap.String("session_id", out.SessionID),
				zap.Error(err),
			)
		}
	}
	if m.progress != nil && out.PlayerID != "" {
		if err := m.progress.RecordOutcome(ctx, out.PlayerID, out); err != nil {
			m.logger.Error("failed to record player progress",
				zap.String("player_id", out.PlayerID),
				zap.Error(err),
			)
		}
	}
	if m.sink != nil {
		// Push the terminal snapshot so observers see the end state.
		if ms, ok := m.Get(out.SessionID); ok {
			m.sink.Publish(ms.Snapshot())
		}
	}
}

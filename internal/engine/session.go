// Package engine - session.go
// ScenarioSession: owns one patient, the placed equipment, the death timers
// and the intervention log for a single run. All vitals mutation is funneled
// through the single tick pipeline; the UI only ever reads committed state.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/patient"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
	"github.com/amornj/medsim-sub000/internal/events"
)

// State is the lifecycle state of a session.
type State string

const (
	StateRunning   State = "running"
	StateDied      State = "patient_died"
	StateSurvived  State = "patient_survived"
	StateAbandoned State = "abandoned"
)

var (
	ErrSessionOver       = errors.New("session already ended")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMalfunction       = errors.New("equipment malfunctioned on placement")
	ErrNotFound          = errors.New("equipment instance not found")
)

// Scenario is the externally authored definition a session runs against.
// The engine is agnostic to how it was written (hand-authored or
// AI-generated); an unrecognized condition tag just falls back to the
// default drift profile.
type Scenario struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	ConditionTag  string          `json:"condition_tag"`
	InitialVitals patient.Vitals  `json:"initial_vitals"`
	History       patient.History `json:"history"`
	Recommended   []string        `json:"recommended_equipment"`
	ClinicalNotes string          `json:"clinical_notes"`
}

// Outcome is the terminal record handed to persistence and achievements.
// The engine emits it; it persists nothing itself.
type Outcome struct {
	SessionID     string                `json:"session_id"`
	ScenarioID    string                `json:"scenario_id"`
	PlayerID      string                `json:"player_id"`
	Outcome       State                 `json:"outcome"`
	Cause         string                `json:"cause,omitempty"`
	FinalVitals   patient.Vitals        `json:"final_vitals"`
	Score         ScoreBreakdown        `json:"score"`
	Total         int                   `json:"total"`
	Grade         string                `json:"grade"`
	Interventions []events.SessionEvent `json:"interventions"`
	Duration      time.Duration         `json:"duration"`
	EndedAt       time.Time             `json:"ended_at"`
}

// Snapshot is the read-side view broadcast to observers after each commit.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	State     State          `json:"state"`
	Vitals    patient.Vitals `json:"vitals"`
	Timers    []TimerState   `json:"timers"`
	Score     ScoreBreakdown `json:"score"`
	Total     int            `json:"total"`
	Funds     float64        `json:"funds"`
	At        time.Time      `json:"at"`
}

// maxTickDelta caps dt so a stalled host scheduler cannot land one giant
// tick; the simulation tolerates jitter, not time travel.
const maxTickDelta = 10 * time.Second

// vitalsAuditEvery controls how often a committed-vitals audit event is
// appended to the session log (every Nth tick).
const vitalsAuditEvery = 15

// Session orchestrates one run. Mutation happens only under mu, and only
// through the tick pipeline and the player-intervention methods.
type Session struct {
	mu sync.RWMutex

	id       string
	playerID string
	scenario Scenario
	mode     rules.GameMode
	catalog  equipment.Catalog

	log      *events.EventLog
	logger   *zap.Logger
	resolver *DeviceEffectResolver
	tracker  *DeathTimerTracker
	rng      *rand.Rand

	vitals    patient.Vitals // committed state, swapped whole per tick
	initial   patient.Vitals
	equipment []*equipment.Instance
	funds     float64

	startedAt time.Time
	lastTick  time.Time
	tickCount int64

	state State
	cause string

	onTick  func(Snapshot)
	onEnded func(Outcome)
}

// NewSession loads a scenario into a fresh running session. seed fixes the
// session RNG so runs are replayable; persister may be nil.
func NewSession(scenario Scenario, mode rules.GameMode, catalog equipment.Catalog, persister events.Persister, seed int64, playerID string, logger *zap.Logger) *Session {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		playerID:  playerID,
		scenario:  scenario,
		mode:      mode,
		catalog:   catalog,
		log:       events.NewEventLog(persister, logger),
		logger:    logger,
		resolver:  NewDeviceEffectResolver(mode, rng, logger),
		tracker:   NewDeathTimerTracker(),
		rng:       rng,
		vitals:    scenario.InitialVitals.Clamped(),
		initial:   scenario.InitialVitals.Clamped(),
		funds:     mode.Funds,
		startedAt: now,
		lastTick:  now,
		state:     StateRunning,
	}

	if !rules.KnownCondition(scenario.ConditionTag) {
		logger.Info("unrecognized condition tag, using default drift profile",
			zap.String("session_id", s.id),
			zap.String("condition_tag", scenario.ConditionTag),
		)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetTickListener installs the per-commit snapshot callback (hub, cache).
func (s *Session) SetTickListener(fn func(Snapshot)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// SetOutcomeListener installs the terminal callback.
func (s *Session) SetOutcomeListener(fn func(Outcome)) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// Vitals returns the last committed vitals.
func (s *Session) Vitals() patient.Vitals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vitals
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Funds returns the remaining play money.
func (s *Session) Funds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.funds
}

// Equipment returns the active instances in insertion order.
func (s *Session) Equipment() []*equipment.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*equipment.Instance, len(s.equipment))
	copy(out, s.equipment)
	return out
}

// Events exposes the session log for the read side.
func (s *Session) Events() *events.EventLog { return s.log }

// PlaceEquipment buys and places a device. The catalog supplies the cost;
// the game mode may roll an equipment malfunction, which burns the money,
// lands in the log as a distinguishable event, and places nothing.
func (s *Session) PlaceEquipment(t equipment.Type, raw map[string]interface{}) (*equipment.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil, ErrSessionOver
	}

	cost := 0.0
	if entry, ok := s.catalog.Lookup(t); ok {
		cost = entry.Cost
	} else {
		s.logger.Warn("equipment type not in catalog, placing at zero cost",
			zap.String("session_id", s.id),
			zap.String("equipment_type", string(t)),
		)
	}
	if cost > s.funds {
		return nil, fmt.Errorf("placing %s: %w", t, ErrInsufficientFunds)
	}
	s.funds -= cost

	if s.mode.MalfunctionChance > 0 && s.rng.Float64() < s.mode.MalfunctionChance {
		s.log.Append(events.SessionEvent{
			SessionID:     s.id,
			Type:          events.EventTypeMalfunction,
			EquipmentType: string(t),
		})
		s.logger.Warn("equipment malfunction on placement",
			zap.String("session_id", s.id),
			zap.String("equipment_type", string(t)),
		)
		return nil, fmt.Errorf("placing %s: %w", t, ErrMalfunction)
	}

	inst := equipment.New(t, equipment.ParseSettings(t, raw))
	s.equipment = append(s.equipment, inst)
	s.log.Append(events.SessionEvent{
		SessionID:     s.id,
		Type:          events.EventTypeEquipmentPlaced,
		EquipmentType: string(t),
		EquipmentID:   inst.ID,
	})
	return inst, nil
}

// RemoveEquipment destroys a placed instance. No refunds.
func (s *Session) RemoveEquipment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrSessionOver
	}
	for i, eq := range s.equipment {
		if eq.ID == id {
			s.equipment = append(s.equipment[:i], s.equipment[i+1:]...)
			s.log.Append(events.SessionEvent{
				SessionID:     s.id,
				Type:          events.EventTypeEquipmentRemoved,
				EquipmentType: string(eq.Type),
				EquipmentID:   id,
			})
			return nil
		}
	}
	return ErrNotFound
}

// UpdateSettings replaces an instance's configuration between ticks.
func (s *Session) UpdateSettings(id string, raw map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrSessionOver
	}
	for _, eq := range s.equipment {
		if eq.ID == id {
			// Preserve the recorded shock timestamp across reconfiguration.
			if prev, ok := eq.Settings.(equipment.DefibrillatorSettings); ok {
				next, _ := equipment.ParseSettings(eq.Type, raw).(equipment.DefibrillatorSettings)
				next.LastShockAt = prev.LastShockAt
				eq.Settings = next
			} else {
				eq.Settings = equipment.ParseSettings(eq.Type, raw)
			}
			s.log.Append(events.SessionEvent{
				SessionID:     s.id,
				Type:          events.EventTypeSettingsChanged,
				EquipmentType: string(eq.Type),
				EquipmentID:   id,
			})
			return nil
		}
	}
	return ErrNotFound
}

// DeliverShock records a defibrillation attempt. A shock only takes against
// asystole; on a beating heart it is logged but starts no recovery ramp.
func (s *Session) DeliverShock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrSessionOver
	}
	for _, eq := range s.equipment {
		if eq.ID != id {
			continue
		}
		if eq.Type != equipment.TypeDefibrillator {
			return fmt.Errorf("equipment %s is not a defibrillator", id)
		}
		cfg, _ := eq.Settings.(equipment.DefibrillatorSettings)
		s.log.Append(events.SessionEvent{
			SessionID:     s.id,
			Type:          events.EventTypeShockDelivered,
			EquipmentType: string(eq.Type),
			EquipmentID:   id,
			Payload:       map[string]float64{"energy": cfg.Energy},
		})
		if s.vitals.HeartRate == 0 {
			cfg.LastShockAt = time.Now()
			eq.Settings = cfg
		}
		return nil
	}
	return ErrNotFound
}

// Advance runs one authoritative tick at the given wall time. Every phase
// reads the previously committed vitals; the result is summed, clamped,
// overridden (pacemaker) and committed in one swap. A tick arriving after
// the session ended is a no-op, not an error - cancellation can race the
// host scheduler.
func (s *Session) Advance(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}

	dt := now.Sub(s.lastTick).Seconds()
	if dt <= 0 {
		return
	}
	if dt > maxTickDelta.Seconds() {
		dt = maxTickDelta.Seconds()
	}

	prev := s.vitals // committed snapshot every phase reads

	// Phase 1: condition drift + universal compensations.
	delta := rules.Drift(prev, s.scenario.ConditionTag, dt, s.rng)

	// Phase 2: comorbidity modifiers from the patient background.
	delta.Add(rules.History(prev, s.scenario.History, s.scenario.ConditionTag, dt))

	// Phase 3: device effects, insertion order. Additive deltas commute;
	// the pacemaker override is collected and applied after the clamp.
	var hrOverride *float64
	for _, eq := range s.equipment {
		eff := s.resolver.Resolve(prev, eq, s.scenario.History, now, dt)
		delta.Add(eff.Delta)
		if eff.HeartRateOverride != nil {
			hrOverride = eff.HeartRateOverride
		}
	}

	// Cosmetic monitor wobble rides along in the same commit.
	delta.Add(rules.Jitter(prev, s.rng))

	// Sum, clamp, override, commit.
	next := prev.Apply(delta)
	if hrOverride != nil {
		next.HeartRate = *hrOverride
	}
	s.vitals = next
	s.lastTick = now
	s.tickCount++

	if s.tickCount%vitalsAuditEvery == 0 {
		s.log.Append(events.SessionEvent{
			SessionID: s.id,
			Type:      events.EventTypeVitalsCommitted,
			Payload:   next,
		})
	}

	// Death timers judge the fresh commit, never a cached flag.
	if cause := s.tracker.Evaluate(next, now); cause != "" {
		s.terminateLocked(StateDied, cause, now)
		return
	}

	if s.onTick != nil {
		s.onTick(s.snapshotLocked(now))
	}
}

// Complete marks the run as a player-declared survival (handoff, stabilized,
// scenario goals met - the surrounding game decides when to call this).
func (s *Session) Complete() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return Outcome{}, ErrSessionOver
	}
	return s.terminateLocked(StateSurvived, "", time.Now()), nil
}

// Abandon ends the run without an outcome for the patient.
func (s *Session) Abandon() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return Outcome{}, ErrSessionOver
	}
	return s.terminateLocked(StateAbandoned, "", time.Now()), nil
}

// Score computes the live breakdown from current history.
func (s *Session) Score() ScoreBreakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Score(s.scoreInputLocked())
}

// Snapshot returns the observer view of the committed state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(time.Now())
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	score := Score(s.scoreInputLocked())
	return Snapshot{
		SessionID: s.id,
		State:     s.state,
		Vitals:    s.vitals,
		Timers:    s.tracker.Armed(now),
		Score:     score,
		Total:     score.Total(),
		Funds:     s.funds,
		At:        now,
	}
}

func (s *Session) scoreInputLocked() ScoreInput {
	in := ScoreInput{
		StartedAt:   s.startedAt,
		Recommended: s.scenario.Recommended,
		Initial:     s.initial,
		Current:     s.vitals,
		Died:        s.state == StateDied,
	}
	for _, eq := range s.equipment {
		in.EquipmentTypes = append(in.EquipmentTypes, string(eq.Type))
	}
	if iv := s.log.Interventions(); len(iv) > 0 {
		in.FirstInterventionAt = iv[0].Timestamp
	}
	return in
}

// terminateLocked freezes the session and emits the outcome record. Caller
// holds mu.
func (s *Session) terminateLocked(state State, cause string, now time.Time) Outcome {
	s.state = state
	s.cause = cause

	score := Score(s.scoreInputLocked())
	out := Outcome{
		SessionID:     s.id,
		ScenarioID:    s.scenario.ID,
		PlayerID:      s.playerID,
		Outcome:       state,
		Cause:         cause,
		FinalVitals:   s.vitals,
		Score:         score,
		Total:         score.Total(),
		Grade:         score.Grade(),
		Interventions: s.log.Interventions(),
		Duration:      now.Sub(s.startedAt),
		EndedAt:       now,
	}

	eventType := events.EventTypeSessionAbandoned
	switch state {
	case StateDied:
		eventType = events.EventTypePatientDied
	case StateSurvived:
		eventType = events.EventTypePatientSurvived
	}
	s.log.Append(events.SessionEvent{
		SessionID: s.id,
		Type:      eventType,
		Payload:   out,
	})

	s.logger.Info("session ended",
		zap.String("session_id", s.id),
		zap.String("outcome", string(state)),
		zap.String("cause", cause),
		zap.Int("score", out.Total),
		zap.String("grade", out.Grade),
	)

	if s.onEnded != nil {
		// Fired on its own goroutine: listeners persist and broadcast, and
		// must not re-enter the session under our lock.
		go s.onEnded(out)
	}
	return out
}

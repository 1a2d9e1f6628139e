// Package engine - deathtimer.go
// DeathTimerTracker: a state machine per lethal-condition key. A timer arms
// the instant its predicate becomes true, is discarded the instant it becomes
// false (no partial credit), and kills the session when it runs out.
package engine

import (
	"time"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

// Lethal-condition keys. The key doubles as the reported cause of death.
const (
	CauseCardiacArrest = "cardiac_arrest"
	CauseNoBP          = "no_bp"
	CauseHypothermia   = "hypothermia"
	CauseHyperthermia  = "hyperthermia"
)

// lethalCondition couples a predicate over the committed vitals with its
// survivable window.
type lethalCondition struct {
	key       string
	threshold time.Duration
	predicate func(patient.Vitals) bool
}

// lethalConditions is evaluated every tick, in order. First expiry wins.
var lethalConditions = []lethalCondition{
	{
		key:       CauseCardiacArrest,
		threshold: 240 * time.Second,
		predicate: func(v patient.Vitals) bool { return v.HeartRate == 0 },
	},
	{
		key:       CauseNoBP,
		threshold: 240 * time.Second,
		predicate: func(v patient.Vitals) bool { return v.SystolicBP == 0 || v.DiastolicBP == 0 },
	},
	{
		key:       CauseHypothermia,
		threshold: 600 * time.Second,
		predicate: func(v patient.Vitals) bool { return v.Temperature < 35 },
	},
	{
		key:       CauseHyperthermia,
		threshold: 600 * time.Second,
		predicate: func(v patient.Vitals) bool { return v.Temperature > 39 },
	},
}

// TimerState is a snapshot of one armed timer, for the monitoring UI.
type TimerState struct {
	Key       string        `json:"key"`
	StartedAt time.Time     `json:"started_at"`
	Threshold time.Duration `json:"threshold"`
	Remaining time.Duration `json:"remaining"`
}

// DeathTimerTracker tracks every armed lethal-condition countdown for one
// session. Not safe for concurrent use; the session's tick pipeline is the
// only caller.
type DeathTimerTracker struct {
	armedAt map[string]time.Time
}

// NewDeathTimerTracker creates an empty tracker.
func NewDeathTimerTracker() *DeathTimerTracker {
	return &DeathTimerTracker{
		armedAt: make(map[string]time.Time),
	}
}

// Evaluate runs every predicate against the freshly committed vitals - never
// against a separately maintained flag, so the tracker cannot diverge from
// the state it judges. Returns the cause key of the first expired timer, or
// "" while the patient is still salvageable.
func (t *DeathTimerTracker) Evaluate(v patient.Vitals, now time.Time) string {
	for _, c := range lethalConditions {
		if !c.predicate(v) {
			// Predicate cleared: the countdown is discarded outright, so a
			// re-entry later restarts from zero.
			delete(t.armedAt, c.key)
			continue
		}

		startedAt, armed := t.armedAt[c.key]
		if !armed {
			t.armedAt[c.key] = now
			continue
		}

		if now.Sub(startedAt) >= c.threshold {
			return c.key
		}
	}
	return ""
}

// Armed returns snapshots of all currently armed timers.
func (t *DeathTimerTracker) Armed(now time.Time) []TimerState {
	var out []TimerState
	for _, c := range lethalConditions {
		startedAt, armed := t.armedAt[c.key]
		if !armed {
			continue
		}
		remaining := c.threshold - now.Sub(startedAt)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, TimerState{
			Key:       c.key,
			StartedAt: startedAt,
			Threshold: c.threshold,
			Remaining: remaining,
		})
	}
	return out
}

// Package test holds the scripted end-to-end checks driven by the
// scenario-runner binary. They run full sessions with synthetic clocks,
// outside go test, so scenario authors can sanity-check balance changes
// from the command line.
package test

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
	"github.com/amornj/medsim-sub000/internal/engine"
)

// CheckResult captures the outcome of one scripted scenario.
type CheckResult struct {
	Name     string
	Input    string
	Expected string
	Actual   string
	Passed   bool
	Reason   string
}

// ScenarioChecks runs every scripted check and returns the results.
func ScenarioChecks() []CheckResult {
	return []CheckResult{
		runNeglectCheck(),
		runRescueCheck(),
		runPacemakerCheck(),
	}
}

const step = 2 * time.Second

func newCheckSession(scenarioID string, seed int64) (*engine.Session, time.Time) {
	scenario, _ := engine.FindScenario(scenarioID)
	s := engine.NewSession(scenario, rules.DefaultGameMode(), equipment.DefaultCatalog(), nil, seed, "check-runner", zap.NewNop())
	return s, time.Now()
}

func advance(s *engine.Session, start time.Time, simulated time.Duration) time.Time {
	now := start
	for elapsed := step; elapsed <= simulated; elapsed += step {
		now = start.Add(elapsed)
		s.Advance(now)
		if s.State() != engine.StateRunning {
			break
		}
	}
	return now
}

// runNeglectCheck verifies an untreated cardiac arrest dies on the timer,
// not sooner, not never.
func runNeglectCheck() CheckResult {
	result := CheckResult{
		Name:     "Untreated cardiac arrest",
		Input:    "cardiac-arrest-01, no interventions, 300s",
		Expected: "patient_died at 240s",
	}

	s, start := newCheckSession("cardiac-arrest-01", 1)

	advance(s, start, 230*time.Second)
	if s.State() != engine.StateRunning {
		result.Actual = string(s.State())
		result.Reason = "patient died before the 240s arrest window elapsed"
		return result
	}

	advance(s, start.Add(230*time.Second), 80*time.Second)
	result.Actual = string(s.State())
	if s.State() == engine.StateDied {
		result.Passed = true
		result.Reason = "arrest timer expired inside the expected window"
	} else {
		result.Reason = "patient should have died after 240s of arrest"
	}
	return result
}

// runRescueCheck verifies ventilatory support actually turns a respiratory
// failure around and that completing the run scores it.
func runRescueCheck() CheckResult {
	result := CheckResult{
		Name:     "BiPAP rescue of respiratory failure",
		Input:    "resp-failure-01, BiPAP FiO2 80 within first tick, 180s",
		Expected: "SpO2 recovers, completion scores as survival",
	}

	s, start := newCheckSession("resp-failure-01", 2)
	before := s.Vitals().SpO2

	_, err := s.PlaceEquipment(equipment.TypeBiPAP, map[string]interface{}{
		"fio2": 80.0, "peep": 8.0,
	})
	if err != nil {
		result.Actual = "placement failed: " + err.Error()
		result.Reason = "could not place BiPAP"
		return result
	}

	advance(s, start, 180*time.Second)
	after := s.Vitals().SpO2

	if s.State() != engine.StateRunning {
		result.Actual = string(s.State())
		result.Reason = "session terminated despite ventilatory support"
		return result
	}
	if after <= before {
		result.Actual = fmt.Sprintf("SpO2 %.1f -> %.1f", before, after)
		result.Reason = "SpO2 failed to recover under BiPAP"
		return result
	}

	out, err := s.Complete()
	if err != nil {
		result.Actual = "complete failed: " + err.Error()
		result.Reason = "completion rejected on a running session"
		return result
	}

	result.Actual = fmt.Sprintf("SpO2 %.1f -> %.1f, outcome %s, total %d (%s)",
		before, after, out.Outcome, out.Total, out.Grade)
	if out.Outcome == engine.StateSurvived && out.Total > 0 {
		result.Passed = true
		result.Reason = "support recovered the patient and the run scored"
	} else {
		result.Reason = "expected a scored survival outcome"
	}
	return result
}

// runPacemakerCheck verifies the pacing override pins heart rate at the set
// rate regardless of drift.
func runPacemakerCheck() CheckResult {
	result := CheckResult{
		Name:     "Pacemaker rate override",
		Input:    "septic-shock-01, pacemaker at 80 bpm, 60s",
		Expected: "HR pinned to 80 on every commit",
	}

	s, start := newCheckSession("septic-shock-01", 3)
	_, err := s.PlaceEquipment(equipment.TypePacemaker, map[string]interface{}{
		"enabled": true, "pacing_rate": 80.0,
	})
	if err != nil {
		result.Actual = "placement failed: " + err.Error()
		result.Reason = "could not place pacemaker"
		return result
	}

	advance(s, start, 60*time.Second)
	hr := s.Vitals().HeartRate
	result.Actual = fmt.Sprintf("HR %.1f", hr)
	if hr == 80 {
		result.Passed = true
		result.Reason = "override applied after clamping, drift had no say"
	} else {
		result.Reason = "heart rate escaped the pacing override"
	}
	return result
}

// Summary renders the results as a console report and reports overall pass.
func Summary(results []CheckResult) (string, bool) {
	var b strings.Builder
	allPassed := true
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			allPassed = false
		}
		fmt.Fprintf(&b, "[%s] %s\n", status, r.Name)
		fmt.Fprintf(&b, "       input:    %s\n", r.Input)
		fmt.Fprintf(&b, "       expected: %s\n", r.Expected)
		fmt.Fprintf(&b, "       actual:   %s\n", r.Actual)
		fmt.Fprintf(&b, "       reason:   %s\n", r.Reason)
	}
	return b.String(), allPassed
}

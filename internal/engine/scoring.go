// Package engine - scoring.go
// ScoringEngine: a pure projection of session history onto a 0-100 score.
// Recomputed from scratch on every evaluation (live HUD and final record
// alike) so there is no incremental counter to drift out of sync.
package engine

import (
	"time"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

// ScoreBreakdown is the four sub-scores summing to 0-100.
type ScoreBreakdown struct {
	Speed              int `json:"speed"`               // 0-25
	BestPractices      int `json:"best_practices"`      // 0-35
	ResourceEfficiency int `json:"resource_efficiency"` // 0-20
	Outcome            int `json:"outcome"`             // 0-20
}

// Total sums the sub-scores.
func (s ScoreBreakdown) Total() int {
	return s.Speed + s.BestPractices + s.ResourceEfficiency + s.Outcome
}

// Grade maps the total onto the fixed letter bands.
func (s ScoreBreakdown) Grade() string {
	switch total := s.Total(); {
	case total >= 90:
		return "A"
	case total >= 80:
		return "B"
	case total >= 70:
		return "C"
	case total >= 60:
		return "D"
	default:
		return "F"
	}
}

// ScoreInput is everything the scorer reads. The session assembles it from
// its history; the scorer itself holds no state and never errors - an empty
// session degrades every sub-score to its floor.
type ScoreInput struct {
	StartedAt           time.Time
	FirstInterventionAt time.Time // zero if the player never intervened
	EquipmentTypes      []string  // currently placed, insertion order
	Recommended         []string  // scenario best-practices set
	Initial             patient.Vitals
	Current             patient.Vitals
	Died                bool
}

// Score derives the live breakdown from a session snapshot.
func Score(in ScoreInput) ScoreBreakdown {
	return ScoreBreakdown{
		Speed:              speedScore(in),
		BestPractices:      bestPracticesScore(in),
		ResourceEfficiency: efficiencyScore(in),
		Outcome:            outcomeScore(in),
	}
}

// speedScore bands time-to-first-intervention. Bands, not a continuous
// formula: pass/fail thresholds should be obvious in tests and to players.
func speedScore(in ScoreInput) int {
	if in.FirstInterventionAt.IsZero() {
		return 0
	}
	elapsed := in.FirstInterventionAt.Sub(in.StartedAt)
	switch {
	case elapsed < 30*time.Second:
		return 25
	case elapsed < time.Minute:
		return 22
	case elapsed < 3*time.Minute:
		return 15
	case elapsed < 5*time.Minute:
		return 10
	default:
		return 5
	}
}

// bestPracticesScore rewards equipment in the scenario's recommended set and
// penalizes the rest: min(35, correct*10 - incorrect*5), floored at zero.
// Duplicate placements of one type count once.
func bestPracticesScore(in ScoreInput) int {
	recommended := make(map[string]bool, len(in.Recommended))
	for _, t := range in.Recommended {
		recommended[t] = true
	}

	seen := make(map[string]bool, len(in.EquipmentTypes))
	correct, incorrect := 0, 0
	for _, t := range in.EquipmentTypes {
		if seen[t] {
			continue
		}
		seen[t] = true
		if recommended[t] {
			correct++
		} else {
			incorrect++
		}
	}

	score := correct*10 - incorrect*5
	if score > 35 {
		score = 35
	}
	if score < 0 {
		score = 0
	}
	return score
}

// efficiencyScore penalizes distance from the ideal device count:
// max(0, 20 - 3*|ideal-actual|).
func efficiencyScore(in ScoreInput) int {
	ideal := len(in.Recommended)
	actual := len(in.EquipmentTypes)
	diff := ideal - actual
	if diff < 0 {
		diff = -diff
	}
	score := 20 - 3*diff
	if score < 0 {
		score = 0
	}
	return score
}

// outcomeScore starts from a neutral 10 and moves on detected improvement
// and deterioration signals, clamped to [0,20].
func outcomeScore(in ScoreInput) int {
	score := 10

	// Improvement signals: +3 each.
	if in.Current.SpO2-in.Initial.SpO2 >= 5 {
		score += 3
	}
	if in.Current.SystolicBP-in.Initial.SystolicBP >= 10 {
		score += 3
	}
	if hrAbnormal(in.Initial.HeartRate) && !hrAbnormal(in.Current.HeartRate) {
		score += 3
	}
	if in.Initial.HeartRate == 0 && in.Current.HeartRate > 0 {
		score += 3 // ROSC from asystole
	}

	// Deterioration signals: -4 each.
	if in.Initial.SpO2-in.Current.SpO2 >= 5 {
		score -= 4
	}
	if in.Initial.SystolicBP-in.Current.SystolicBP >= 10 {
		score -= 4
	}
	if in.Initial.HeartRate > 0 && in.Current.HeartRate == 0 {
		score -= 4 // arrested on the player's watch
	}
	if in.Died {
		score -= 4
	}

	if score < 0 {
		score = 0
	}
	if score > 20 {
		score = 20
	}
	return score
}

func hrAbnormal(hr float64) bool {
	return hr < 60 || hr > 100
}

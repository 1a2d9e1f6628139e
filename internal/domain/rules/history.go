package rules

import (
	"strings"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

// History layers comorbidity modifiers from the patient background onto the
// per-tick drift. Substring matching against a fixed keyword table, first
// match per category; multiple categories stack additively. This function
// never reads or writes equipment state.
func History(v patient.Vitals, h patient.History, tag string, dt float64) patient.Delta {
	var d patient.Delta

	// Chronic lung disease lowers the achievable SpO2 ceiling: once
	// saturation climbs above the diseased baseline it gets pulled back.
	if h.HasCondition("copd") || h.HasCondition("asthma") {
		if v.SpO2 > 92 {
			d.SpO2 -= 0.1 * dt
		}
	}

	// Heart failure: baseline congestion oxygenates worse and breathes harder.
	if h.HasCondition("chf") || h.HasCondition("heart failure") {
		if v.SpO2 > 90 {
			d.SpO2 -= 0.05 * dt
		}
		if v.RespiratoryRate < 28 {
			d.RespiratoryRate += 0.05 * dt
		}
	}

	// Chronic hypertension raises the pressure floor: a measurable but low
	// pressure drifts back up toward the patient's accustomed baseline.
	if h.HasCondition("hypertension") {
		if v.SystolicBP > 0 && v.SystolicBP < 110 {
			d.SystolicBP += 0.2 * dt
		}
	}

	// Diabetes worsens the febrile response under trauma or sepsis.
	if h.HasCondition("diabetes") && (tag == ConditionTrauma || tag == ConditionSepticShock) {
		d.Temperature += 0.005 * dt
	}

	// Social history: heavy smoking and alcohol carry small standing
	// penalties. First match per category only.
	if heavyHabit(h.Social.Smoking) {
		if v.SpO2 > 88 {
			d.SpO2 -= 0.05 * dt
		}
	}
	if heavyHabit(h.Social.Alcohol) {
		if v.HeartRate > 0 && v.HeartRate < 150 {
			d.HeartRate += 0.1 * dt
		}
	}

	return d
}

// heavyHabit matches the free-text social history fields the same way the
// condition table does: keyword substrings, not NLP.
func heavyHabit(entry string) bool {
	e := strings.ToLower(entry)
	for _, kw := range []string{"heavy", "daily", "chronic", "pack", "severe"} {
		if strings.Contains(e, kw) {
			return true
		}
	}
	return false
}

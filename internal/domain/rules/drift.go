// Package rules contains the pure calculation logic for the simulation:
// condition deterioration profiles, patient-history modifiers and the drug
// effect table. This package is PURE and must NOT import any infrastructure
// packages.
package rules

import (
	"math/rand"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

// Condition tags with a registered deterioration profile. Anything else
// (custom or AI-generated scenarios) falls back to the jitter profile.
const (
	ConditionCardiacArrest      = "cardiac_arrest"
	ConditionRespiratoryFailure = "respiratory_failure"
	ConditionSepticShock        = "septic_shock"
	ConditionTrauma             = "trauma"
	ConditionStroke             = "stroke"
	ConditionAnaphylaxis        = "anaphylaxis"
)

// KnownCondition reports whether the tag has a registered profile.
func KnownCondition(tag string) bool {
	switch tag {
	case ConditionCardiacArrest, ConditionRespiratoryFailure, ConditionSepticShock,
		ConditionTrauma, ConditionStroke, ConditionAnaphylaxis:
		return true
	}
	return false
}

// Drift computes the untreated per-tick deterioration for the condition tag.
// dt is simulated seconds since the last drift phase. The profiles are
// rate-of-change coefficients, not targets: each tick nudges, the clamp
// catches the extremes. rng is only consulted by the fallback jitter profile,
// so registered conditions stay fully deterministic.
func Drift(v patient.Vitals, tag string, dt float64, rng *rand.Rand) patient.Delta {
	var d patient.Delta

	switch tag {
	case ConditionCardiacArrest:
		// Circulatory collapse: whatever rhythm and pressure remain decay
		// fast, oxygen falls off a cliff.
		d.HeartRate = -4.0 * dt
		d.SystolicBP = -3.0 * dt
		d.DiastolicBP = -2.0 * dt
		d.SpO2 = -0.5 * dt
		d.RespiratoryRate = -0.6 * dt

	case ConditionRespiratoryFailure:
		// Untreated hypoxemia deepens; breathing effort rises until the
		// patient tires out.
		d.SpO2 = -0.2 * dt
		if v.SpO2 < 80 {
			d.SpO2 -= 0.2 * dt // accelerates once reserves are gone
		}
		if v.RespiratoryRate < 32 {
			d.RespiratoryRate = 0.15 * dt
		}

	case ConditionSepticShock:
		// Vasodilation: pressure bleeds away, fever climbs.
		d.SystolicBP = -0.8 * dt
		d.DiastolicBP = -0.5 * dt
		d.Temperature = 0.01 * dt
		d.SpO2 = -0.05 * dt

	case ConditionTrauma:
		// Ongoing blood loss and heat loss.
		d.SystolicBP = -0.6 * dt
		d.DiastolicBP = -0.4 * dt
		d.Temperature = -0.008 * dt

	case ConditionStroke:
		// Cushing-style picture: pressure climbs, rhythm slows.
		if v.SystolicBP < 220 {
			d.SystolicBP = 0.5 * dt
		}
		if v.HeartRate > 45 {
			d.HeartRate = -0.2 * dt
		}
		d.RespiratoryRate = -0.05 * dt

	case ConditionAnaphylaxis:
		// Airway closes and pressure collapses at the same time.
		d.SpO2 = -0.35 * dt
		d.SystolicBP = -1.2 * dt
		d.DiastolicBP = -0.8 * dt
		if v.HeartRate < 140 {
			d.HeartRate = 0.8 * dt
		}

	default:
		// Unregistered pathophysiology: small bounded random walk so custom
		// scenarios still feel alive without a directed slide. Flat vitals
		// stay flat, same as Jitter.
		if rng != nil {
			if v.HeartRate > 0 {
				d.HeartRate = (rng.Float64()*2 - 1) * 0.5 * dt
			}
			if v.SystolicBP > 0 {
				d.SystolicBP = (rng.Float64()*2 - 1) * 0.6 * dt
			}
			if v.DiastolicBP > 0 {
				d.DiastolicBP = (rng.Float64()*2 - 1) * 0.4 * dt
			}
			if v.RespiratoryRate > 0 {
				d.RespiratoryRate = (rng.Float64()*2 - 1) * 0.2 * dt
			}
			if v.SpO2 > 0 {
				d.SpO2 = (rng.Float64()*2 - 1) * 0.15 * dt
			}
			d.Temperature = (rng.Float64()*2 - 1) * 0.005 * dt
		}
	}

	d.Add(Compensate(v, dt))
	return d
}

// Compensate applies the universal compensatory reflexes. Runs after the
// condition branch, unconditionally, in fixed order. Every rule is a bounded
// increment gated on a threshold over the committed vitals, so re-running it
// on an already-compensated state where no threshold is crossed yields zero.
func Compensate(v patient.Vitals, dt float64) patient.Delta {
	var d patient.Delta

	// Hypoxemia -> tachycardia. Asystole cannot compensate.
	if v.SpO2 < 90 && v.HeartRate > 0 && v.HeartRate < 160 {
		d.HeartRate += 0.5 * dt
	}

	// Severe hypotension -> tachycardia.
	if v.SystolicBP > 0 && v.SystolicBP < 80 && v.HeartRate > 0 && v.HeartRate < 160 {
		d.HeartRate += 0.4 * dt
	}

	// Fever -> tachycardia + tachypnea.
	if v.Temperature > 38.5 {
		if v.HeartRate > 0 && v.HeartRate < 150 {
			d.HeartRate += 0.3 * dt
		}
		if v.RespiratoryRate < 35 {
			d.RespiratoryRate += 0.1 * dt
		}
	}

	// Hypothermia -> bradycardia + bradypnea.
	if v.Temperature < 35 {
		if v.HeartRate > 40 {
			d.HeartRate -= 0.3 * dt
		}
		if v.RespiratoryRate > 8 {
			d.RespiratoryRate -= 0.1 * dt
		}
	}

	return d
}

// Jitter is the cosmetic monitor wobble folded into each tick. Purely
// presentational: tiny, zero-mean, and clamped with everything else. Flat
// vitals stay flat - a wobble must never pull a patient out of asystole or
// give an unmeasurable pressure a reading.
func Jitter(v patient.Vitals, rng *rand.Rand) patient.Delta {
	if rng == nil {
		return patient.Delta{}
	}
	var d patient.Delta
	if v.HeartRate > 0 {
		d.HeartRate = (rng.Float64()*2 - 1) * 0.3
	}
	if v.SystolicBP > 0 {
		d.SystolicBP = (rng.Float64()*2 - 1) * 0.5
	}
	if v.DiastolicBP > 0 {
		d.DiastolicBP = (rng.Float64()*2 - 1) * 0.3
	}
	if v.RespiratoryRate > 0 {
		d.RespiratoryRate = (rng.Float64()*2 - 1) * 0.1
	}
	if v.SpO2 > 0 {
		d.SpO2 = (rng.Float64()*2 - 1) * 0.1
	}
	return d
}

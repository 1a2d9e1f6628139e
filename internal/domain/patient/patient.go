// Package patient defines the core domain entities for the simulated patient.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package patient

import "strings"

// Consciousness is the categorical level-of-consciousness field.
// Free text is allowed for AI-generated scenarios, so this stays a string type.
type Consciousness string

const (
	Alert        Consciousness = "Alert"
	Confused     Consciousness = "Confused"
	Lethargic    Consciousness = "Lethargic"
	Obtunded     Consciousness = "Obtunded"
	Unresponsive Consciousness = "Unresponsive"
)

// Physiologic clamp bounds. Every numeric vital is forced back into these
// ranges after each mutation; a value outside them is a programming error.
const (
	MaxHeartRate       = 300.0
	MaxSystolicBP      = 300.0
	MaxDiastolicBP     = 200.0
	MaxRespiratoryRate = 80.0
	MinTemperature     = 25.0
	MaxTemperature     = 45.0
)

// Vitals is the patient state vector. It is a value type: the simulation
// commits a whole new Vitals per tick rather than mutating fields in place.
type Vitals struct {
	HeartRate       float64       `json:"heart_rate"`       // beats/min, 0 = asystole
	SystolicBP      float64       `json:"systolic_bp"`      // mmHg, 0 = unmeasurable
	DiastolicBP     float64       `json:"diastolic_bp"`     // mmHg
	RespiratoryRate float64       `json:"respiratory_rate"` // breaths/min
	SpO2            float64       `json:"spo2"`             // % saturation, [0,100]
	Temperature     float64       `json:"temperature"`      // Celsius
	Consciousness   Consciousness `json:"consciousness"`
}

// Delta is an additive adjustment to Vitals. Deltas from the drift, history
// and device phases are summed before being applied, so individual rules stay
// commutative.
type Delta struct {
	HeartRate       float64
	SystolicBP      float64
	DiastolicBP     float64
	RespiratoryRate float64
	SpO2            float64
	Temperature     float64
}

// Add accumulates another delta into d.
func (d *Delta) Add(other Delta) {
	d.HeartRate += other.HeartRate
	d.SystolicBP += other.SystolicBP
	d.DiastolicBP += other.DiastolicBP
	d.RespiratoryRate += other.RespiratoryRate
	d.SpO2 += other.SpO2
	d.Temperature += other.Temperature
}

// IsZero reports whether the delta carries no adjustment at all.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Apply returns a new clamped Vitals with the delta added. The receiver is
// never modified.
func (v Vitals) Apply(d Delta) Vitals {
	next := v
	next.HeartRate += d.HeartRate
	next.SystolicBP += d.SystolicBP
	next.DiastolicBP += d.DiastolicBP
	next.RespiratoryRate += d.RespiratoryRate
	next.SpO2 += d.SpO2
	next.Temperature += d.Temperature
	return next.Clamped()
}

// Clamped returns the vitals forced back into physiologic bounds.
func (v Vitals) Clamped() Vitals {
	v.HeartRate = clamp(v.HeartRate, 0, MaxHeartRate)
	v.SystolicBP = clamp(v.SystolicBP, 0, MaxSystolicBP)
	v.DiastolicBP = clamp(v.DiastolicBP, 0, MaxDiastolicBP)
	v.RespiratoryRate = clamp(v.RespiratoryRate, 0, MaxRespiratoryRate)
	v.SpO2 = clamp(v.SpO2, 0, 100)
	v.Temperature = clamp(v.Temperature, MinTemperature, MaxTemperature)
	return v
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// SocialHistory captures lifestyle facts scanned by the history modifier.
type SocialHistory struct {
	Smoking    string `json:"smoking"`
	Alcohol    string `json:"alcohol"`
	Drugs      string `json:"drugs"`
	Occupation string `json:"occupation"`
}

// History is the patient background record. Immutable for the duration of a
// session except through an explicit edit action.
type History struct {
	PastMedicalConditions []string      `json:"past_medical_conditions"`
	CurrentMedications    []string      `json:"current_medications"`
	Allergies             []string      `json:"allergies"`
	Social                SocialHistory `json:"social_history"`
}

// HasCondition reports whether any past medical condition contains the given
// keyword (case-insensitive substring match, matching the rule tables).
func (h History) HasCondition(keyword string) bool {
	kw := strings.ToLower(keyword)
	for _, c := range h.PastMedicalConditions {
		if strings.Contains(strings.ToLower(c), kw) {
			return true
		}
	}
	return false
}

// MatchesAllergy reports whether the drug name matches any recorded allergy,
// in either direction: "penicillin" as an allergy must catch the drug
// "penicillin g", and the allergy "penicillin g" must catch "penicillin".
func (h History) MatchesAllergy(drug string) bool {
	d := strings.ToLower(strings.TrimSpace(drug))
	if d == "" {
		return false
	}
	for _, a := range h.Allergies {
		al := strings.ToLower(strings.TrimSpace(a))
		if al == "" {
			continue
		}
		if strings.Contains(d, al) || strings.Contains(al, d) {
			return true
		}
	}
	return false
}

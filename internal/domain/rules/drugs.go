package rules

import (
	"strings"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

// DrugClass groups drugs by their modelled hemodynamic effect.
type DrugClass string

const (
	ClassVasopressor DrugClass = "vasopressor"
	ClassSedative    DrugClass = "sedative"
	ClassBetaBlocker DrugClass = "beta_blocker"
	ClassOpioid      DrugClass = "opioid"
	ClassAntibiotic  DrugClass = "antibiotic"
)

// drugKeywords maps free-text name fragments to a drug class. The player
// types whatever the drug reference shows; we match substrings, by design,
// instead of structured lookup. Order within a class does not matter; the
// first class whose keyword matches wins.
var drugKeywords = []struct {
	keyword string
	class   DrugClass
}{
	{"norepinephrine", ClassVasopressor},
	{"noradrenaline", ClassVasopressor},
	{"epinephrine", ClassVasopressor},
	{"adrenaline", ClassVasopressor},
	{"vasopressin", ClassVasopressor},
	{"dopamine", ClassVasopressor},
	{"phenylephrine", ClassVasopressor},
	{"propofol", ClassSedative},
	{"midazolam", ClassSedative},
	{"ketamine", ClassSedative},
	{"dexmedetomidine", ClassSedative},
	{"sedat", ClassSedative},
	{"metoprolol", ClassBetaBlocker},
	{"esmolol", ClassBetaBlocker},
	{"labetalol", ClassBetaBlocker},
	{"propranolol", ClassBetaBlocker},
	{"fentanyl", ClassOpioid},
	{"morphine", ClassOpioid},
	{"hydromorphone", ClassOpioid},
	{"remifentanil", ClassOpioid},
	{"vancomycin", ClassAntibiotic},
	{"ceftriaxone", ClassAntibiotic},
	{"piperacillin", ClassAntibiotic},
	{"meropenem", ClassAntibiotic},
	{"penicillin", ClassAntibiotic},
	{"azithromycin", ClassAntibiotic},
}

// ClassifyDrug resolves a free-text drug name to its modelled class.
// Unrecognized drugs return ok=false: unmodeled drugs are safe no-ops, not
// errors.
func ClassifyDrug(name string) (DrugClass, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	for _, entry := range drugKeywords {
		if strings.Contains(n, entry.keyword) {
			return entry.class, true
		}
	}
	return "", false
}

// TherapeuticEffect returns the per-tick delta for an infusion of the given
// class running at rate. All rules are linear in rate; the clamp and the
// physiologic gates below keep them bounded.
func TherapeuticEffect(class DrugClass, rate float64, v patient.Vitals, dt float64) patient.Delta {
	var d patient.Delta
	if rate <= 0 {
		return d // pump connected but off
	}

	// Normalize so a "typical" rate of 10 produces a visible but sane slope.
	r := rate / 10.0
	if r > 3 {
		r = 3 // titrating past 3x the reference rate buys nothing more
	}

	switch class {
	case ClassVasopressor:
		if v.SystolicBP < 180 {
			d.SystolicBP += 1.2 * r * dt
			d.DiastolicBP += 0.8 * r * dt
		}
	case ClassSedative:
		if v.SystolicBP > 70 {
			d.SystolicBP -= 0.6 * r * dt
		}
		if v.HeartRate > 45 {
			d.HeartRate -= 0.5 * r * dt
		}
	case ClassBetaBlocker:
		if v.HeartRate > 45 {
			d.HeartRate -= 0.8 * r * dt
		}
		if v.SystolicBP > 80 {
			d.SystolicBP -= 0.4 * r * dt
		}
	case ClassOpioid:
		if v.RespiratoryRate > 4 {
			d.RespiratoryRate -= 0.3 * r * dt
		}
	case ClassAntibiotic:
		// Slowly walks a fever back toward normal. Does nothing below 37.2.
		if v.Temperature > 37.2 {
			d.Temperature -= 0.004 * r * dt
		}
	}
	return d
}

// AdverseReaction is the severity-scaled effect applied INSTEAD of the
// therapeutic one when the drug name matches a recorded allergy. Severity
// 0 means the active game mode ignores allergies entirely.
func AdverseReaction(severity int, v patient.Vitals, dt float64) patient.Delta {
	var d patient.Delta
	if severity <= 0 {
		return d
	}
	s := float64(severity) // 1-3

	// Histamine-style crash: pressure drops, compensatory tachycardia,
	// oxygenation suffers as the airway tightens.
	if v.SystolicBP > 0 {
		d.SystolicBP -= 1.5 * s * dt
		d.DiastolicBP -= 1.0 * s * dt
	}
	if v.HeartRate > 0 && v.HeartRate < 170 {
		d.HeartRate += 0.8 * s * dt
	}
	d.SpO2 -= 0.3 * s * dt
	return d
}

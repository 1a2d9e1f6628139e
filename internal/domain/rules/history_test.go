package rules

import (
	"testing"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

func TestCOPDOxygenCeiling(t *testing.T) {
	h := patient.History{PastMedicalConditions: []string{"COPD, on home O2"}}

	above := patient.Vitals{HeartRate: 80, SystolicBP: 130, SpO2: 95, Temperature: 37}
	below := patient.Vitals{HeartRate: 80, SystolicBP: 130, SpO2: 90, Temperature: 37}

	if d := History(above, h, "", 2.0); !almostEqual(d.SpO2, -0.2) {
		t.Errorf("Expected SpO2 pulled back -0.2 above the COPD ceiling, got %.4f", d.SpO2)
	}
	if d := History(below, h, "", 2.0); d.SpO2 != 0 {
		t.Errorf("Expected no penalty below the ceiling, got %.4f", d.SpO2)
	}
}

func TestHypertensionPressureFloor(t *testing.T) {
	h := patient.History{PastMedicalConditions: []string{"essential hypertension"}}

	low := patient.Vitals{HeartRate: 80, SystolicBP: 100, SpO2: 97, Temperature: 37}
	unmeasurable := patient.Vitals{HeartRate: 80, SystolicBP: 0, SpO2: 97, Temperature: 37}
	normal := patient.Vitals{HeartRate: 80, SystolicBP: 125, SpO2: 97, Temperature: 37}

	if d := History(low, h, "", 1.0); !almostEqual(d.SystolicBP, 0.2) {
		t.Errorf("Expected systolic drift back up 0.2 below baseline, got %.4f", d.SystolicBP)
	}
	// An unmeasurable pressure is collapse, not a low baseline.
	if d := History(unmeasurable, h, "", 1.0); d.SystolicBP != 0 {
		t.Errorf("Expected no floor effect at systolic 0, got %.4f", d.SystolicBP)
	}
	if d := History(normal, h, "", 1.0); d.SystolicBP != 0 {
		t.Errorf("Expected no floor effect at systolic 125, got %.4f", d.SystolicBP)
	}
}

func TestDiabetesOnlyWorsensTraumaAndSepsis(t *testing.T) {
	h := patient.History{PastMedicalConditions: []string{"type 2 diabetes"}}
	v := patient.Vitals{HeartRate: 80, SystolicBP: 120, SpO2: 97, Temperature: 37.5}

	if d := History(v, h, ConditionSepticShock, 2.0); !almostEqual(d.Temperature, 0.01) {
		t.Errorf("Expected febrile penalty 0.01 under sepsis, got %.4f", d.Temperature)
	}
	if d := History(v, h, ConditionTrauma, 2.0); !almostEqual(d.Temperature, 0.01) {
		t.Errorf("Expected febrile penalty 0.01 under trauma, got %.4f", d.Temperature)
	}
	if d := History(v, h, ConditionStroke, 2.0); d.Temperature != 0 {
		t.Errorf("Expected no diabetes penalty under stroke, got %.4f", d.Temperature)
	}
}

func TestHeavySmokingPenalty(t *testing.T) {
	h := patient.History{Social: patient.SocialHistory{Smoking: "2 packs per day for 30 years"}}
	v := patient.Vitals{HeartRate: 80, SystolicBP: 120, SpO2: 94, Temperature: 37}

	if d := History(v, h, "", 1.0); !almostEqual(d.SpO2, -0.05) {
		t.Errorf("Expected smoking penalty -0.05, got %.4f", d.SpO2)
	}

	light := patient.History{Social: patient.SocialHistory{Smoking: "quit 10 years ago"}}
	if d := History(v, light, "", 1.0); d.SpO2 != 0 {
		t.Errorf("Expected no penalty for a former smoker, got %.4f", d.SpO2)
	}
}

func TestHeavyAlcoholTachycardia(t *testing.T) {
	h := patient.History{Social: patient.SocialHistory{Alcohol: "daily, about a bottle of wine"}}
	v := patient.Vitals{HeartRate: 90, SystolicBP: 120, SpO2: 97, Temperature: 37}

	if d := History(v, h, "", 2.0); !almostEqual(d.HeartRate, 0.2) {
		t.Errorf("Expected alcohol tachycardia 0.2, got %.4f", d.HeartRate)
	}

	arrested := patient.Vitals{HeartRate: 0, SystolicBP: 0, SpO2: 40, Temperature: 36}
	if d := History(arrested, h, "", 2.0); d.HeartRate != 0 {
		t.Errorf("Expected no social tachycardia in asystole, got %.4f", d.HeartRate)
	}
}

func TestComorbiditiesStack(t *testing.T) {
	h := patient.History{PastMedicalConditions: []string{"COPD", "CHF"}}
	v := patient.Vitals{HeartRate: 80, SystolicBP: 120, RespiratoryRate: 16, SpO2: 95, Temperature: 37}

	d := History(v, h, "", 1.0)

	// COPD -0.1 plus CHF -0.05 on SpO2, and the CHF tachypnea drift.
	if !almostEqual(d.SpO2, -0.15) {
		t.Errorf("Expected stacked SpO2 penalty -0.15, got %.4f", d.SpO2)
	}
	if !almostEqual(d.RespiratoryRate, 0.05) {
		t.Errorf("Expected CHF tachypnea 0.05, got %.4f", d.RespiratoryRate)
	}
}

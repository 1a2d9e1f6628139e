package rules

import (
	"math"
	"math/rand"
	"testing"

	"github.com/amornj/medsim-sub000/internal/domain/patient"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCardiacArrestDrift(t *testing.T) {
	// A patient with nothing abnormal besides the condition tag, so no
	// compensation rule fires and the raw profile is visible.
	v := patient.Vitals{
		HeartRate:       80,
		SystolicBP:      120,
		DiastolicBP:     80,
		RespiratoryRate: 14,
		SpO2:            97,
		Temperature:     37.0,
	}

	d := Drift(v, ConditionCardiacArrest, 2.0, nil)

	if !almostEqual(d.HeartRate, -8.0) {
		t.Errorf("Expected HR delta -8.0, got %.4f", d.HeartRate)
	}
	if !almostEqual(d.SystolicBP, -6.0) {
		t.Errorf("Expected systolic delta -6.0, got %.4f", d.SystolicBP)
	}
	if !almostEqual(d.DiastolicBP, -4.0) {
		t.Errorf("Expected diastolic delta -4.0, got %.4f", d.DiastolicBP)
	}
	if !almostEqual(d.SpO2, -1.0) {
		t.Errorf("Expected SpO2 delta -1.0, got %.4f", d.SpO2)
	}
	if !almostEqual(d.RespiratoryRate, -1.2) {
		t.Errorf("Expected RR delta -1.2, got %.4f", d.RespiratoryRate)
	}
}

func TestRespiratoryFailureAccelerates(t *testing.T) {
	high := patient.Vitals{HeartRate: 90, SystolicBP: 120, SpO2: 92, RespiratoryRate: 20, Temperature: 37}
	low := patient.Vitals{HeartRate: 90, SystolicBP: 120, SpO2: 75, RespiratoryRate: 20, Temperature: 37}

	dHigh := Drift(high, ConditionRespiratoryFailure, 1.0, nil)
	dLow := Drift(low, ConditionRespiratoryFailure, 1.0, nil)

	if !almostEqual(dHigh.SpO2, -0.2) {
		t.Errorf("Expected -0.2 SpO2 slope above the reserve threshold, got %.4f", dHigh.SpO2)
	}
	// Below 80 the slope doubles. The low patient is also hypoxemic enough
	// to trigger compensation, which never touches SpO2.
	if !almostEqual(dLow.SpO2, -0.4) {
		t.Errorf("Expected -0.4 SpO2 slope below 80%%, got %.4f", dLow.SpO2)
	}
	if dLow.HeartRate <= 0 {
		t.Errorf("Expected compensatory tachycardia at SpO2 75, got HR delta %.4f", dLow.HeartRate)
	}
}

func TestStrokeGates(t *testing.T) {
	// Above the pressure ceiling and below the rate floor neither stroke
	// rule fires.
	v := patient.Vitals{HeartRate: 40, SystolicBP: 225, DiastolicBP: 110, RespiratoryRate: 12, SpO2: 96, Temperature: 37}

	d := Drift(v, ConditionStroke, 2.0, nil)

	if d.SystolicBP > 0 {
		t.Errorf("Expected no systolic climb above 220, got %.4f", d.SystolicBP)
	}
	if d.HeartRate < 0 {
		t.Errorf("Expected no bradycardia drift at HR 40, got %.4f", d.HeartRate)
	}
}

func TestAnaphylaxisHeartRateCeiling(t *testing.T) {
	v := patient.Vitals{HeartRate: 145, SystolicBP: 100, DiastolicBP: 60, RespiratoryRate: 24, SpO2: 93, Temperature: 37}

	d := Drift(v, ConditionAnaphylaxis, 1.0, nil)

	if d.HeartRate > 0 {
		t.Errorf("Expected no further tachycardia above 140, got %.4f", d.HeartRate)
	}
	if d.SystolicBP >= 0 {
		t.Errorf("Expected pressure collapse, got %.4f", d.SystolicBP)
	}
}

func TestCompensateAsystoleCannotCompensate(t *testing.T) {
	v := patient.Vitals{HeartRate: 0, SystolicBP: 0, DiastolicBP: 0, RespiratoryRate: 0, SpO2: 60, Temperature: 36.5}

	d := Compensate(v, 2.0)

	if !d.IsZero() {
		t.Errorf("Expected zero compensation from an arrested heart, got %+v", d)
	}
}

func TestCompensateStacksHypoxemiaAndHypotension(t *testing.T) {
	v := patient.Vitals{HeartRate: 100, SystolicBP: 70, DiastolicBP: 45, RespiratoryRate: 18, SpO2: 85, Temperature: 37}

	d := Compensate(v, 1.0)

	// 0.5 for hypoxemia plus 0.4 for severe hypotension.
	if !almostEqual(d.HeartRate, 0.9) {
		t.Errorf("Expected stacked tachycardia 0.9, got %.4f", d.HeartRate)
	}
}

func TestCompensateQuietWhenNormal(t *testing.T) {
	v := patient.Vitals{HeartRate: 72, SystolicBP: 118, DiastolicBP: 76, RespiratoryRate: 14, SpO2: 98, Temperature: 36.8}

	if d := Compensate(v, 5.0); !d.IsZero() {
		t.Errorf("Expected no compensation on normal vitals, got %+v", d)
	}
}

func TestCompensateHypothermia(t *testing.T) {
	v := patient.Vitals{HeartRate: 88, SystolicBP: 110, DiastolicBP: 70, RespiratoryRate: 16, SpO2: 96, Temperature: 34.2}

	d := Compensate(v, 2.0)

	if !almostEqual(d.HeartRate, -0.6) {
		t.Errorf("Expected bradycardia -0.6 at 34.2C, got %.4f", d.HeartRate)
	}
	if !almostEqual(d.RespiratoryRate, -0.2) {
		t.Errorf("Expected bradypnea -0.2 at 34.2C, got %.4f", d.RespiratoryRate)
	}
}

func TestJitterNeverResurrectsFlatVitals(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := patient.Vitals{HeartRate: 0, SystolicBP: 0, DiastolicBP: 0, RespiratoryRate: 0, SpO2: 0, Temperature: 36}

	for i := 0; i < 100; i++ {
		d := Jitter(v, rng)
		if d.HeartRate != 0 || d.SystolicBP != 0 || d.DiastolicBP != 0 || d.RespiratoryRate != 0 || d.SpO2 != 0 {
			t.Fatalf("Jitter moved a flat vital on iteration %d: %+v", i, d)
		}
	}
}

func TestJitterNilRNG(t *testing.T) {
	v := patient.Vitals{HeartRate: 80, SystolicBP: 120, SpO2: 97}
	if d := Jitter(v, nil); !d.IsZero() {
		t.Errorf("Expected zero jitter without an RNG, got %+v", d)
	}
}

func TestDefaultDriftFlatStaysFlat(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	v := patient.Vitals{HeartRate: 0, SystolicBP: 0, DiastolicBP: 0, RespiratoryRate: 0, SpO2: 0, Temperature: 36.5}

	for i := 0; i < 50; i++ {
		d := Drift(v, "mystery_toxin", 2.0, rng)
		if d.HeartRate != 0 || d.SystolicBP != 0 || d.SpO2 != 0 {
			t.Fatalf("Random walk moved a flat vital on iteration %d: %+v", i, d)
		}
	}
}

func TestKnownCondition(t *testing.T) {
	for _, tag := range []string{
		ConditionCardiacArrest, ConditionRespiratoryFailure, ConditionSepticShock,
		ConditionTrauma, ConditionStroke, ConditionAnaphylaxis,
	} {
		if !KnownCondition(tag) {
			t.Errorf("Expected %q to be a registered condition", tag)
		}
	}
	if KnownCondition("mystery_toxin") {
		t.Errorf("Expected unregistered tag to report false")
	}
}

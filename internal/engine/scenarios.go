package engine

import (
	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/patient"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
)

// BuiltinScenarios returns the stock teaching cases. Deployments can load
// authored scenarios from elsewhere; these ship with the server so a fresh
// install is playable.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{
			ID:           "cardiac-arrest-01",
			Title:        "Witnessed cardiac arrest",
			ConditionTag: rules.ConditionCardiacArrest,
			InitialVitals: patient.Vitals{
				HeartRate:       0,
				SystolicBP:      0,
				DiastolicBP:     0,
				RespiratoryRate: 0,
				SpO2:            72,
				Temperature:     36.4,
				Consciousness:   patient.Unresponsive,
			},
			History: patient.History{
				PastMedicalConditions: []string{"hypertension", "type 2 diabetes"},
			},
			Recommended: []string{
				string(equipment.TypeDefibrillator),
				string(equipment.TypeLUCAS),
				string(equipment.TypeVentilator),
			},
			ClinicalNotes: "Collapsed in the waiting room. No pulse on arrival.",
		},
		{
			ID:           "resp-failure-01",
			Title:        "Acute respiratory failure, COPD background",
			ConditionTag: rules.ConditionRespiratoryFailure,
			InitialVitals: patient.Vitals{
				HeartRate:       118,
				SystolicBP:      145,
				DiastolicBP:     88,
				RespiratoryRate: 32,
				SpO2:            81,
				Temperature:     37.2,
				Consciousness:   patient.Confused,
			},
			History: patient.History{
				PastMedicalConditions: []string{"COPD"},
				Social: patient.SocialHistory{
					Smoking: "heavy, 40 pack years",
				},
			},
			Recommended: []string{
				string(equipment.TypeBiPAP),
				string(equipment.TypePulseOximeter),
			},
			ClinicalNotes: "Two days of worsening dyspnea, now accessory muscle use.",
		},
		{
			ID:           "septic-shock-01",
			Title:        "Septic shock from urinary source",
			ConditionTag: rules.ConditionSepticShock,
			InitialVitals: patient.Vitals{
				HeartRate:       128,
				SystolicBP:      78,
				DiastolicBP:     46,
				RespiratoryRate: 26,
				SpO2:            92,
				Temperature:     39.4,
				Consciousness:   patient.Lethargic,
			},
			History: patient.History{
				PastMedicalConditions: []string{"type 2 diabetes"},
				Allergies:             []string{"penicillin"},
			},
			Recommended: []string{
				string(equipment.TypeIVPump),
				string(equipment.TypeArterialLine),
				string(equipment.TypePulseOximeter),
			},
			ClinicalNotes: "Febrile, hypotensive, lactate pending. Penicillin allergy documented.",
		},
		{
			ID:           "anaphylaxis-01",
			Title:        "Anaphylaxis after contrast exposure",
			ConditionTag: rules.ConditionAnaphylaxis,
			InitialVitals: patient.Vitals{
				HeartRate:       134,
				SystolicBP:      82,
				DiastolicBP:     50,
				RespiratoryRate: 30,
				SpO2:            88,
				Temperature:     36.9,
				Consciousness:   patient.Obtunded,
			},
			History: patient.History{
				Allergies: []string{"iodinated contrast"},
			},
			Recommended: []string{
				string(equipment.TypeIVPump),
				string(equipment.TypeHFNC),
			},
			ClinicalNotes: "Stridor and urticaria minutes after CT contrast.",
		},
		{
			ID:           "trauma-01",
			Title:        "Blunt polytrauma, motorcycle collision",
			ConditionTag: rules.ConditionTrauma,
			InitialVitals: patient.Vitals{
				HeartRate:       136,
				SystolicBP:      86,
				DiastolicBP:     54,
				RespiratoryRate: 28,
				SpO2:            90,
				Temperature:     35.6,
				Consciousness:   patient.Obtunded,
			},
			History: patient.History{
				Social: patient.SocialHistory{
					Alcohol: "daily",
				},
			},
			Recommended: []string{
				string(equipment.TypeIVPump),
				string(equipment.TypeWarmingBlanket),
				string(equipment.TypeArterialLine),
			},
			ClinicalNotes: "Unstable pelvis, FAST positive. Cooling fast in the bay.",
		},
	}
}

// FindScenario looks a builtin scenario up by ID.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range BuiltinScenarios() {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

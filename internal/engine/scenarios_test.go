package engine

import (
	"testing"

	"github.com/amornj/medsim-sub000/internal/domain/rules"
)

func TestBuiltinScenariosAreRunnable(t *testing.T) {
	scenarios := BuiltinScenarios()
	if len(scenarios) == 0 {
		t.Fatal("Expected builtin teaching cases")
	}

	seen := map[string]bool{}
	for _, sc := range scenarios {
		if sc.ID == "" || sc.Title == "" {
			t.Errorf("Scenario missing identity: %+v", sc)
		}
		if seen[sc.ID] {
			t.Errorf("Duplicate scenario ID %q", sc.ID)
		}
		seen[sc.ID] = true
		if !rules.KnownCondition(sc.ConditionTag) {
			t.Errorf("Scenario %q uses unregistered condition %q", sc.ID, sc.ConditionTag)
		}
		if len(sc.Recommended) == 0 {
			t.Errorf("Scenario %q recommends no equipment, scoring would be degenerate", sc.ID)
		}
		// Initial vitals must survive the clamp unchanged, otherwise the
		// authored numbers are lies.
		if sc.InitialVitals != sc.InitialVitals.Clamped() {
			t.Errorf("Scenario %q has out-of-bounds initial vitals", sc.ID)
		}
	}
}

func TestFindScenario(t *testing.T) {
	all := BuiltinScenarios()
	found, ok := FindScenario(all[0].ID)
	if !ok {
		t.Fatalf("Expected to find %q", all[0].ID)
	}
	if found.ID != all[0].ID {
		t.Errorf("Found wrong scenario: %q", found.ID)
	}

	if _, ok := FindScenario("missing"); ok {
		t.Errorf("Expected miss for unknown ID")
	}
}

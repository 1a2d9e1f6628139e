package rules

import "math/rand"

// AllergyPolicy is the game-mode setting that decides how hard allergic
// reactions hit. Supplied by the external game-mode layer.
type AllergyPolicy string

const (
	AllergyNone          AllergyPolicy = "none"
	AllergyFixed         AllergyPolicy = "fixed"
	AllergyRandom        AllergyPolicy = "random"
	AllergyComplications AllergyPolicy = "complications"
	AllergyDeadly        AllergyPolicy = "deadly"
)

// GameMode is what the engine consumes from the external game-mode policy:
// starting funds, allergy severity and the equipment malfunction chance.
type GameMode struct {
	Funds             float64       `json:"funds"`
	AllergyPolicy     AllergyPolicy `json:"allergy_policy"`
	MalfunctionChance float64       `json:"malfunction_chance"` // 0.0-1.0 per placement
}

// DefaultGameMode is a forgiving training configuration.
func DefaultGameMode() GameMode {
	return GameMode{
		Funds:         5000,
		AllergyPolicy: AllergyFixed,
	}
}

// AllergySeverity maps the policy to a 0-3 severity for this occurrence.
// The random tier draws from the session RNG so replays stay deterministic.
func AllergySeverity(p AllergyPolicy, rng *rand.Rand) int {
	switch p {
	case AllergyNone:
		return 0
	case AllergyFixed:
		return 1
	case AllergyComplications:
		return 2
	case AllergyDeadly:
		return 3
	case AllergyRandom:
		if rng == nil {
			return 1
		}
		return rng.Intn(4)
	}
	return 0
}

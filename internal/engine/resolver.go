// Package engine - resolver.go
// DeviceEffectResolver: turns one active equipment instance into a vitals
// delta for this tick. Called per instance, in the order equipment was added,
// so runs are reproducible when several devices touch the same vital.
package engine

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/domain/patient"
	"github.com/amornj/medsim-sub000/internal/domain/rules"
)

// shockRecoveryWindow is how long a successful defibrillation takes to ramp
// the rhythm back, rather than an instantaneous jump.
const shockRecoveryWindow = 30 * time.Second

// shockRecoveryRate is the target heart rate at the end of the ramp.
const shockRecoveryRate = 60.0

// Effect is what one device contributes to a tick: an additive delta, plus
// an optional heart-rate assignment. Only the pacemaker uses the override;
// it is applied after all additive deltas so nothing can undo it.
type Effect struct {
	Delta             patient.Delta
	HeartRateOverride *float64
}

// DeviceEffectResolver maps equipment instances to vitals effects.
type DeviceEffectResolver struct {
	logger *zap.Logger
	mode   rules.GameMode
	rng    *rand.Rand
}

// NewDeviceEffectResolver creates a resolver bound to the active game mode.
// rng feeds the random allergy-severity tier; pass the session RNG so replays
// stay deterministic.
func NewDeviceEffectResolver(mode rules.GameMode, rng *rand.Rand, logger *zap.Logger) *DeviceEffectResolver {
	return &DeviceEffectResolver{
		logger: logger,
		mode:   mode,
		rng:    rng,
	}
}

// Resolve computes the effect of one equipment instance against the
// committed vitals. Malformed settings resolve to a zero effect - one bad
// field must never stop the rest of the tick.
func (r *DeviceEffectResolver) Resolve(v patient.Vitals, eq *equipment.Instance, hist patient.History, now time.Time, dt float64) Effect {
	switch eq.Type {
	case equipment.TypeVentilator, equipment.TypeBiPAP, equipment.TypeCPAP, equipment.TypeHFNC:
		return Effect{Delta: r.respiratory(v, eq, dt)}

	case equipment.TypeIVPump, equipment.TypeSyringePump:
		return Effect{Delta: r.infusion(v, eq, hist, dt)}

	case equipment.TypeECMOVA, equipment.TypeECMOVV, equipment.TypeIABP,
		equipment.TypeLUCAS, equipment.TypeCPB:
		return Effect{Delta: r.circulatory(v, eq, dt)}

	case equipment.TypeDefibrillator:
		return Effect{Delta: r.defibrillator(v, eq, now)}

	case equipment.TypePacemaker:
		return r.pacemaker(eq)

	case equipment.TypeWarmingBlanket, equipment.TypeCoolingBlanket, equipment.TypeTempManagement:
		return Effect{Delta: r.temperature(v, eq, dt)}

	case equipment.TypeSwanGanz, equipment.TypePiCCO, equipment.TypeLiDCO,
		equipment.TypeArterialLine, equipment.TypePulseOximeter:
		return Effect{Delta: r.monitoring(v, eq, dt)}
	}

	// Unknown equipment type: deliberate no-op, but worth a diagnostic.
	r.logger.Debug("unknown equipment type, no effect",
		zap.String("equipment_id", eq.ID),
		zap.String("equipment_type", string(eq.Type)),
	)
	return Effect{}
}

// respiratory handles ventilator, BiPAP, CPAP and HFNC. FiO2 is mapped
// through ordered threshold bands instead of a continuous formula so behavior
// is predictable at band boundaries. Coefficients are per simulated second;
// at the nominal 2s device cadence they match the classic per-tick numbers.
func (r *DeviceEffectResolver) respiratory(v patient.Vitals, eq *equipment.Instance, dt float64) patient.Delta {
	var d patient.Delta
	s, ok := eq.Settings.(equipment.RespiratorySettings)
	if !ok {
		return d
	}

	// FiO2 bands.
	switch {
	case s.FiO2 >= 80:
		d.SpO2 += 0.75 * dt
	case s.FiO2 >= 60:
		d.SpO2 += 0.5 * dt
	case s.FiO2 >= 40:
		d.SpO2 += 0.25 * dt
	}

	switch eq.Type {
	case equipment.TypeVentilator:
		if s.PEEP >= 5 && s.PEEP <= 15 {
			d.SpO2 += 0.1 * dt
		}
		// Barotrauma proxy: over-distending tidal volume hurts oxygenation.
		if s.TidalVolume > 600 {
			d.SpO2 -= 0.2 * dt
		}
		// The machine breathes; the work of breathing eases off.
		if v.RespiratoryRate > 20 {
			d.RespiratoryRate -= 0.1 * dt
		}
	case equipment.TypeBiPAP, equipment.TypeCPAP:
		if s.Pressure >= 8 {
			d.SpO2 += 0.15 * dt
		}
		if v.RespiratoryRate > 24 {
			d.RespiratoryRate -= 0.05 * dt
		}
	case equipment.TypeHFNC:
		switch {
		case s.Flow >= 40:
			d.SpO2 += 0.25 * dt
		case s.Flow >= 20:
			d.SpO2 += 0.15 * dt
		}
	}
	return d
}

// infusion handles the pump devices. The allergy check runs BEFORE any
// pharmacology: a matched allergy replaces the therapeutic effect entirely.
func (r *DeviceEffectResolver) infusion(v patient.Vitals, eq *equipment.Instance, hist patient.History, dt float64) patient.Delta {
	s, ok := eq.Settings.(equipment.InfusionSettings)
	if !ok || s.Rate <= 0 || s.Drug == "" {
		return patient.Delta{} // pump off or not configured
	}

	if hist.MatchesAllergy(s.Drug) {
		severity := rules.AllergySeverity(r.mode.AllergyPolicy, r.rng)
		if severity > 0 {
			r.logger.Warn("allergic reaction to infusion",
				zap.String("equipment_id", eq.ID),
				zap.String("drug", s.Drug),
				zap.Int("severity", severity),
			)
		}
		return rules.AdverseReaction(severity, v, dt)
	}

	class, known := rules.ClassifyDrug(s.Drug)
	if !known {
		// Unmodeled drugs are safe no-ops by design.
		return patient.Delta{}
	}
	return rules.TherapeuticEffect(class, s.Rate, v, dt)
}

// circulatory handles mechanical circulatory/ventilatory support. Magnitude
// is linear in the flow setting, gated at physiologic ceilings. VA-ECMO is
// the one device touching both oxygenation and pressure; VV-ECMO only
// oxygenation.
func (r *DeviceEffectResolver) circulatory(v patient.Vitals, eq *equipment.Instance, dt float64) patient.Delta {
	var d patient.Delta
	s, ok := eq.Settings.(equipment.CirculatorySettings)
	if !ok {
		return d
	}

	flow := s.Flow
	if flow < 0 {
		flow = 0
	}
	if flow > 6 {
		flow = 6 // circuit flow ceiling
	}

	switch eq.Type {
	case equipment.TypeECMOVA:
		if v.SpO2 < 98 {
			d.SpO2 += 0.15 * flow * dt
		}
		if v.SystolicBP < 120 {
			d.SystolicBP += 0.2 * flow * dt
			d.DiastolicBP += 0.12 * flow * dt
		}
	case equipment.TypeECMOVV:
		if v.SpO2 < 98 {
			d.SpO2 += 0.15 * flow * dt
		}
	case equipment.TypeIABP:
		aug := s.Augmentation
		if aug > 3 {
			aug = 3
		}
		if aug > 0 && v.SystolicBP > 0 && v.SystolicBP < 110 {
			d.SystolicBP += 0.25 * aug * dt
			d.DiastolicBP += 0.2 * aug * dt
		}
	case equipment.TypeLUCAS:
		// Mechanical compressions: keeps some pressure and trickle of
		// oxygen moving during arrest. Useless on a beating heart.
		if v.HeartRate == 0 {
			if v.SystolicBP < 70 {
				d.SystolicBP += 0.5 * dt
				d.DiastolicBP += 0.25 * dt
			}
			if v.SpO2 < 85 {
				d.SpO2 += 0.05 * dt
			}
		}
	case equipment.TypeCPB:
		if flow > 0 {
			if v.SpO2 < 98 {
				d.SpO2 += 0.12 * flow * dt
			}
			if v.SystolicBP < 110 {
				d.SystolicBP += 0.15 * flow * dt
				d.DiastolicBP += 0.1 * flow * dt
			}
		}
	}
	return d
}

// defibrillator produces the post-shock recovery ramp. The effect is
// stateful: it keys off the recorded shock timestamp and walks the rate up
// to shockRecoveryRate across the window. Before any shock, or after the
// window closes, the paddles do nothing on their own.
func (r *DeviceEffectResolver) defibrillator(v patient.Vitals, eq *equipment.Instance, now time.Time) patient.Delta {
	var d patient.Delta
	s, ok := eq.Settings.(equipment.DefibrillatorSettings)
	if !ok || s.LastShockAt.IsZero() {
		return d
	}

	elapsed := now.Sub(s.LastShockAt)
	if elapsed < 0 || elapsed > shockRecoveryWindow {
		return d
	}

	// Time-indexed ramp: the target is a function of elapsed time, so the
	// recovery fights off concurrent arrest drift instead of racing it.
	target := shockRecoveryRate * elapsed.Seconds() / shockRecoveryWindow.Seconds()
	if v.HeartRate < target {
		d.HeartRate += target - v.HeartRate
	}
	return d
}

// pacemaker is the one device with assignment semantics: when enabled it
// overrides heart rate to the programmed rate, applied after every additive
// delta so the override cannot be undone within the tick.
func (r *DeviceEffectResolver) pacemaker(eq *equipment.Instance) Effect {
	s, ok := eq.Settings.(equipment.PacemakerSettings)
	if !ok || !s.Enabled || s.Rate <= 0 {
		return Effect{}
	}
	rate := s.Rate
	if rate > patient.MaxHeartRate {
		rate = patient.MaxHeartRate
	}
	return Effect{HeartRateOverride: &rate}
}

// temperature moves the patient toward the device target without ever
// overshooting it within a single tick.
func (r *DeviceEffectResolver) temperature(v patient.Vitals, eq *equipment.Instance, dt float64) patient.Delta {
	var d patient.Delta
	s, ok := eq.Settings.(equipment.TempSettings)
	if !ok {
		return d
	}

	target := s.Target
	speed := s.Speed
	switch eq.Type {
	case equipment.TypeWarmingBlanket:
		if target == 0 {
			target = 37.0
		}
		if speed == 0 {
			speed = 0.01
		}
	case equipment.TypeCoolingBlanket:
		if target == 0 {
			target = 36.0
		}
		if speed == 0 {
			speed = 0.01
		}
	case equipment.TypeTempManagement:
		// Needs an explicit target; a zero config means not started yet.
		if target == 0 {
			return d
		}
		if speed == 0 {
			speed = 0.02
		}
	}
	if target < patient.MinTemperature || target > patient.MaxTemperature {
		return d // malformed target, effect inactive
	}

	diff := target - v.Temperature
	step := speed * dt
	if diff > 0 {
		if step > diff {
			step = diff
		}
		d.Temperature += step
	} else if diff < 0 {
		if step > -diff {
			step = -diff
		}
		d.Temperature -= step
	}
	return d
}

// monitoring gives calibrated monitoring devices a small passive
// stabilization bonus: better-informed titration, modelled as a gentle pull
// toward normal. Deliberately tiny and one-directional - a monitor can never
// destabilize.
func (r *DeviceEffectResolver) monitoring(v patient.Vitals, eq *equipment.Instance, dt float64) patient.Delta {
	var d patient.Delta
	s, ok := eq.Settings.(equipment.MonitorSettings)
	if !ok || !s.Calibrated {
		return d
	}

	if v.SpO2 > 0 && v.SpO2 < 95 {
		d.SpO2 += 0.05 * dt
	}
	if v.SystolicBP > 0 && v.SystolicBP < 100 {
		d.SystolicBP += 0.1 * dt
	}
	if v.HeartRate > 110 {
		d.HeartRate -= 0.05 * dt
	}
	return d
}

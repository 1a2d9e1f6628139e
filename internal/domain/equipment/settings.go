package equipment

import (
	"strconv"
	"strings"
	"time"
)

// Settings is the discriminated union of per-type configuration records.
// The UI hands the server an untyped map; ParseSettings narrows it to the
// variant for the equipment type so malformed configuration surfaces here,
// once, instead of deep inside the tick.
type Settings interface {
	isSettings()
}

// RespiratorySettings configures ventilator, BiPAP, CPAP and HFNC.
// Fields that do not apply to a given device are simply left zero.
type RespiratorySettings struct {
	FiO2        float64 `json:"fio2"`         // % inspired oxygen, 21-100
	PEEP        float64 `json:"peep"`         // cmH2O
	Pressure    float64 `json:"pressure"`     // cmH2O (CPAP/BiPAP support pressure)
	Flow        float64 `json:"flow"`         // L/min (HFNC)
	TidalVolume float64 `json:"tidal_volume"` // mL (ventilator)
}

// InfusionSettings configures an IV or syringe pump. Rate 0 means the pump
// is connected but off.
type InfusionSettings struct {
	Drug string  `json:"drug"` // free-text drug name
	Rate float64 `json:"rate"` // mL/h or mcg/kg/min, unit-agnostic
}

// CirculatorySettings configures ECMO variants, IABP, LUCAS and CPB.
type CirculatorySettings struct {
	Flow         float64 `json:"flow"`         // L/min
	Augmentation float64 `json:"augmentation"` // secondary knob (IABP ratio, sweep gas)
}

// DefibrillatorSettings records the charge energy and the last delivered
// shock. LastShockAt drives the 30s recovery ramp; the zero time means no
// shock has been delivered yet.
type DefibrillatorSettings struct {
	Energy      float64   `json:"energy"` // joules
	LastShockAt time.Time `json:"last_shock_at"`
}

// PacemakerSettings configures the pacing override.
type PacemakerSettings struct {
	Enabled bool    `json:"enabled"`
	Rate    float64 `json:"pacing_rate"` // beats/min, assigned, not added
}

// TempSettings configures warming/cooling blankets and targeted temperature
// management. Speed is degrees Celsius per minute of simulated time.
type TempSettings struct {
	Target float64 `json:"target"`
	Speed  float64 `json:"speed"`
}

// MonitorSettings configures the monitoring-only devices.
type MonitorSettings struct {
	Calibrated bool `json:"calibrated"`
}

func (RespiratorySettings) isSettings()   {}
func (InfusionSettings) isSettings()      {}
func (CirculatorySettings) isSettings()   {}
func (DefibrillatorSettings) isSettings() {}
func (PacemakerSettings) isSettings()     {}
func (TempSettings) isSettings()          {}
func (MonitorSettings) isSettings()       {}

// ParseSettings converts the untyped settings map carried by the UI layer
// into the typed variant for the equipment type. Missing or non-numeric
// fields come out as zero values, which every resolver rule treats as
// "effect inactive" - a single bad field must not kill the tick.
func ParseSettings(t Type, raw map[string]interface{}) Settings {
	switch t {
	case TypeVentilator, TypeBiPAP, TypeCPAP, TypeHFNC:
		return RespiratorySettings{
			FiO2:        num(raw, "fio2"),
			PEEP:        num(raw, "peep"),
			Pressure:    num(raw, "pressure"),
			Flow:        num(raw, "flow"),
			TidalVolume: num(raw, "tidal_volume"),
		}
	case TypeIVPump, TypeSyringePump:
		return InfusionSettings{
			Drug: str(raw, "drug"),
			Rate: num(raw, "rate"),
		}
	case TypeECMOVA, TypeECMOVV, TypeIABP, TypeLUCAS, TypeCPB:
		return CirculatorySettings{
			Flow:         num(raw, "flow"),
			Augmentation: num(raw, "augmentation"),
		}
	case TypeDefibrillator:
		return DefibrillatorSettings{
			Energy: num(raw, "energy"),
		}
	case TypePacemaker:
		return PacemakerSettings{
			Enabled: boolean(raw, "enabled"),
			Rate:    num(raw, "pacing_rate"),
		}
	case TypeWarmingBlanket, TypeCoolingBlanket, TypeTempManagement:
		return TempSettings{
			Target: num(raw, "target"),
			Speed:  num(raw, "speed"),
		}
	case TypeSwanGanz, TypePiCCO, TypeLiDCO, TypeArterialLine, TypePulseOximeter:
		return MonitorSettings{
			Calibrated: boolean(raw, "calibrated"),
		}
	}
	return nil
}

// num pulls a numeric field out of a raw settings map. JSON decoding gives
// float64; numbers arriving as strings are common with form inputs, so a
// strict-but-forgiving parse keeps those working too.
func num(raw map[string]interface{}, key string) float64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}

func str(raw map[string]interface{}, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func boolean(raw map[string]interface{}, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "on" || v == "1"
	case float64:
		return v != 0
	}
	return false
}

// Package equipment defines the equipment/infusion instances a player places
// during a scenario. This package is PURE and must NOT import any
// infrastructure packages.
package equipment

import (
	"time"

	"github.com/google/uuid"
)

// Type is the catalog key for a piece of equipment.
type Type string

const (
	// Respiratory support
	TypeVentilator Type = "ventilator"
	TypeBiPAP      Type = "bipap"
	TypeCPAP       Type = "cpap"
	TypeHFNC       Type = "hfnc"

	// Infusions
	TypeIVPump      Type = "iv_pump"
	TypeSyringePump Type = "syringe_pump"

	// Mechanical circulatory/ventilatory support
	TypeECMOVA Type = "ecmo_va"
	TypeECMOVV Type = "ecmo_vv"
	TypeIABP   Type = "iabp"
	TypeLUCAS  Type = "lucas"
	TypeCPB    Type = "cpb"

	// Electrical/rhythm
	TypeDefibrillator Type = "defibrillator"
	TypePacemaker     Type = "pacemaker"

	// Temperature management
	TypeWarmingBlanket Type = "warming_blanket"
	TypeCoolingBlanket Type = "cooling_blanket"
	TypeTempManagement Type = "temp_management"

	// Monitoring only
	TypeSwanGanz      Type = "swan_ganz"
	TypePiCCO         Type = "picco"
	TypeLiDCO         Type = "lidco"
	TypeArterialLine  Type = "arterial_line"
	TypePulseOximeter Type = "pulse_oximeter"
)

// Instance is one active piece of equipment in a session. Settings are
// mutated through configuration dialogs between ticks; within a tick the
// resolver treats them as read-only.
type Instance struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Settings Settings  `json:"settings"`
	AddedAt  time.Time `json:"added_at"`
}

// New creates an equipment instance with a fresh unique ID.
func New(t Type, settings Settings) *Instance {
	return &Instance{
		ID:       uuid.NewString(),
		Type:     t,
		Settings: settings,
		AddedAt:  time.Now(),
	}
}

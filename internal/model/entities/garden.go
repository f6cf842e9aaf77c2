package entities

import "time"

// IrrigationMode selects which control strategy governs a garden's pump.
type IrrigationMode string

const (
	ModeNone     IrrigationMode = "none"
	ModeSchedule IrrigationMode = "schedule"
	ModeAuto     IrrigationMode = "auto"
	ModeManual   IrrigationMode = "manual"
)

// ValidMode reports whether m is one of the closed mode set.
func ValidMode(m IrrigationMode) bool {
	switch m {
	case ModeNone, ModeSchedule, ModeAuto, ModeManual:
		return true
	}
	return false
}

// SelectorCode maps a mode to the selector the device understands.
// ModeNone has no selector: the device is never told "nothing", it is
// stopped explicitly or simply not refreshed.
func (m IrrigationMode) SelectorCode() (int, bool) {
	switch m {
	case ModeSchedule:
		return 1, true
	case ModeAuto:
		return 2, true
	case ModeManual:
		return 3, true
	}
	return 0, false
}

// PumpStatus is the gateway's best current belief about the physical
// pump state.
type PumpStatus string

const (
	PumpIdle    PumpStatus = "idle"
	PumpPending PumpStatus = "pending"
	PumpOn      PumpStatus = "on"
	PumpOff     PumpStatus = "off"
	PumpError   PumpStatus = "error"
)

// Terminal reports whether s ends an irrigation run.
func (s PumpStatus) Terminal() bool { return s == PumpOff || s == PumpError }

// Garden is a logical irrigation zone bound to at most one device. The
// irrigation/pump fields are mutated exclusively by the gateway core.
type Garden struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"size:128;not null" json:"name"`
	UserID             uint           `gorm:"index;not null" json:"userId"`
	PlantID            uint           `gorm:"index;not null" json:"plantId"`
	DeviceID           string         `gorm:"size:64;not null;default:-1;index" json:"deviceId"`
	IrrigationMode     IrrigationMode `gorm:"size:16;not null;default:none" json:"irrigationMode"`
	PumpStatus         PumpStatus     `gorm:"size:16;not null;default:idle" json:"pumpStatus"`
	PumpStatusMessage  string         `gorm:"size:512" json:"pumpStatusMessage"`
	LastPumpFeedbackAt *time.Time     `json:"lastPumpFeedbackAt"`
	LastPumpSuccess    *bool          `json:"lastPumpSuccess"` // nil = unknown
	CreatedAt          time.Time      `json:"-"`
	UpdatedAt          time.Time      `json:"-"`
}

// HasDevice reports whether a real (non-placeholder) device is bound.
func (g Garden) HasDevice() bool {
	return g.DeviceID != "" && g.DeviceID != PlaceholderDeviceID
}

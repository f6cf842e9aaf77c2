package entities

import "time"

// PlaceholderDeviceID marks a garden that has no physical controller
// bound yet. The row exists so the foreign key always resolves.
const PlaceholderDeviceID = "-1"

// Device is a physical irrigation controller, keyed by the opaque id it
// announces on the bus. Rows are created lazily on first telemetry or
// first binding attempt.
type Device struct {
	DeviceID     string     `gorm:"primaryKey;size:64" json:"deviceId"`
	Temperature  *float64   `json:"temperature"`
	AirHumidity  *float64   `json:"airHumidity"`
	SoilMoisture *float64   `json:"soilMoisture"`
	Connected    bool       `json:"connected"`
	LastUpdated  *time.Time `json:"lastUpdated"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
}

func (d Device) IsPlaceholder() bool { return d.DeviceID == PlaceholderDeviceID }

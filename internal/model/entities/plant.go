package entities

// Plant is a static profile of per-channel thresholds. A nil bound means
// "not configured" and is never alerted on.
type Plant struct {
	ID              uint     `gorm:"primaryKey" json:"id"`
	Name            string   `gorm:"size:128;not null" json:"name"`
	MinTemperature  *float64 `json:"minTemperature"`
	MaxTemperature  *float64 `json:"maxTemperature"`
	MinAirHumidity  *float64 `json:"minAirHumidity"`
	MaxAirHumidity  *float64 `json:"maxAirHumidity"`
	MinSoilMoisture *float64 `json:"minSoilMoisture"`
	MaxSoilMoisture *float64 `json:"maxSoilMoisture"`
}

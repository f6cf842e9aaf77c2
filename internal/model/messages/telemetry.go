package messages

// Telemetry is the conditions payload a device publishes. Pointers keep
// "field missing" distinguishable from a zero reading; all three fields
// are required.
type Telemetry struct {
	Temperature  *float64 `json:"temp"`
	AirHumidity  *float64 `json:"humi"`
	SoilMoisture *float64 `json:"soil"`
}

// Complete reports whether every required field was present.
func (t Telemetry) Complete() bool {
	return t.Temperature != nil && t.AirHumidity != nil && t.SoilMoisture != nil
}

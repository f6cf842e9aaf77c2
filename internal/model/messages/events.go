package messages

import "time"

// DeviceLogEvent is a historical irrigation event reported by the
// device: a wall-clock timestamp split into components plus the watered
// duration in seconds. All fields are required.
type DeviceLogEvent struct {
	Year     *int `json:"year"`
	Month    *int `json:"month"`
	Day      *int `json:"day"`
	Hour     *int `json:"hour"`
	Minute   *int `json:"minute"`
	Second   *int `json:"second"`
	Duration *int `json:"time"`
}

func (e DeviceLogEvent) Complete() bool {
	return e.Year != nil && e.Month != nil && e.Day != nil &&
		e.Hour != nil && e.Minute != nil && e.Second != nil && e.Duration != nil
}

// IrrigationTime assembles the component fields into a local timestamp.
func (e DeviceLogEvent) IrrigationTime() time.Time {
	return time.Date(*e.Year, time.Month(*e.Month), *e.Day, *e.Hour, *e.Minute, *e.Second, 0, time.Local)
}

// PumpFeedback is the free-form control feedback payload. Devices are
// inconsistent about field names, so several aliases are accepted; Raw
// is filled when the payload was not JSON at all.
type PumpFeedback struct {
	Pump     any      `json:"pump"`
	State    any      `json:"state"`
	Status   any      `json:"status"`
	Power    any      `json:"power"`
	Success  *bool    `json:"success"`
	Message  string   `json:"message"`
	Error    string   `json:"error"`
	Duration *float64 `json:"duration"`
	Time     *float64 `json:"time"`

	Raw string `json:"-"`
}

// RawState picks the first state-ish field present, in alias priority
// order.
func (f PumpFeedback) RawState() any {
	for _, v := range []any{f.Pump, f.State, f.Status, f.Power} {
		if v != nil {
			return v
		}
	}
	if f.Raw != "" {
		return f.Raw
	}
	return nil
}

// DurationSeconds returns the reported duration, 0 when absent.
func (f PumpFeedback) DurationSeconds() int {
	if f.Duration != nil {
		return int(*f.Duration)
	}
	if f.Time != nil {
		return int(*f.Time)
	}
	return 0
}

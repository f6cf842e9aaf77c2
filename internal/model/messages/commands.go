package messages

import "time"

// BioCycle carries the plant thresholds a device needs to run auto
// irrigation locally.
type BioCycle struct {
	MaxTemperature  float64 `json:"maxTemperature"`
	MaxAirHumidity  float64 `json:"maxAirHumidity"`
	MinSoilMoisture float64 `json:"minSoilMoisture"`
}

// ScheduleAdd is one watering slot pushed to a device. DayOfWeek is only
// present for weekly slots (0 = Sunday). Duration rides in the "time"
// field, in seconds.
type ScheduleAdd struct {
	Repeat    string `json:"repeat"`
	DayOfWeek *int   `json:"dayOfWeek,omitempty"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Second    int    `json:"second"`
	Duration  int    `json:"time"`
}

// RealTime is the wall-clock sync pushed after a device comes online.
type RealTime struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// RealTimeNow snapshots t into the device clock payload.
func RealTimeNow(t time.Time) RealTime {
	return RealTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

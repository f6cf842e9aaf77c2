package entities

import (
	"strconv"
	"strings"
	"time"
)

// RepeatClass is the recurrence category a schedule belongs to on the
// device side: once, daily or weekly.
type RepeatClass string

const (
	RepeatOnce   RepeatClass = "once"
	RepeatDaily  RepeatClass = "daily"
	RepeatWeekly RepeatClass = "weekly"
)

// Schedule is a persisted watering rule. Lifecycle is owned by the CRUD
// layer; the gateway only reads enabled rows to synchronize devices.
//
// Repeat holds "once", "daily" or "weekly:<dow>" with dow in [0,6]
// (0 = Sunday). Empty repeat is classified from the presence of Date.
type Schedule struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	GardenID        uint       `gorm:"index;not null" json:"gardenId"`
	Date            *time.Time `json:"date"`
	Time            string     `gorm:"size:8;not null" json:"time"` // "HH:MM"
	DurationSeconds int        `gorm:"not null" json:"durationSeconds"`
	Repeat          string     `gorm:"size:16" json:"repeat"`
	Enabled         bool       `gorm:"not null;default:true" json:"enabled"`
	CreatedAt       time.Time  `json:"-"`
	UpdatedAt       time.Time  `json:"-"`
}

// Class partitions the schedule into its repeat class. An explicit
// repeat string wins; otherwise a date means one-off, no date means
// daily.
func (s Schedule) Class() RepeatClass {
	switch {
	case strings.HasPrefix(s.Repeat, "weekly"):
		return RepeatWeekly
	case s.Repeat == "once":
		return RepeatOnce
	case s.Repeat == "daily":
		return RepeatDaily
	case s.Date != nil:
		return RepeatOnce
	default:
		return RepeatDaily
	}
}

// DayOfWeek parses the "weekly:<n>" suffix. ok is false when the repeat
// string carries no day or the day falls outside [0,6].
func (s Schedule) DayOfWeek() (int, bool) {
	rest, found := strings.CutPrefix(s.Repeat, "weekly:")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n > 6 {
		return 0, false
	}
	return n, true
}

// ClockTime splits the "HH:MM" field; the device always waters at
// second zero.
func (s Schedule) ClockTime() (hour, minute int, ok bool) {
	parts := strings.SplitN(s.Time, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

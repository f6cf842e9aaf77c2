package entities

import "time"

// IrrigationRun is an append-only record created on every start/stop
// command. Running mirrors "the pump is currently on for this run" and
// is kept in sync by the feedback handler.
type IrrigationRun struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GardenID  uint      `gorm:"index;not null" json:"gardenId"`
	Running   bool      `gorm:"not null" json:"running"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

// Trigger types recorded on irrigation log entries.
const (
	TriggerManual   = "manual"
	TriggerAuto     = "auto"
	TriggerSchedule = "schedule"
)

// Outcome statuses recorded on irrigation log entries.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// IrrigationLog is the append-only irrigation history, written once
// feedback resolves a run or when a device-reported log event arrives.
type IrrigationLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GardenID        uint      `gorm:"index;not null" json:"gardenId"`
	IrrigationTime  time.Time `gorm:"not null" json:"irrigationTime"`
	DurationSeconds int       `gorm:"not null" json:"durationSeconds"`
	Status          string    `gorm:"size:16;not null" json:"status"`
	Type            string    `gorm:"size:16;not null" json:"type"`
	Notes           string    `gorm:"size:512" json:"notes"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
}

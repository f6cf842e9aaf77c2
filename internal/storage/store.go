package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
)

// ErrNotFound is returned when a row the caller asked for by id does
// not exist.
var ErrNotFound = errors.New("not found")

// PumpStatusUpdate is the persisted outcome of a pump lifecycle event.
// Success stays nil when the outcome is unknown.
type PumpStatusUpdate struct {
	Status  entities.PumpStatus
	Message string
	At      time.Time
	Success *bool
}

// Store defines every persistence operation the gateway core needs.
// All operations are single-row transactional; cross-request sharing is
// per garden/device id only.
type Store interface {
	GardenByID(ctx context.Context, id uint) (*entities.Garden, error)
	GardenByDeviceID(ctx context.Context, deviceID string) (*entities.Garden, error)
	DeviceBoundElsewhere(ctx context.Context, deviceID string, gardenID uint) (bool, error)
	UpdateGardenMode(ctx context.Context, gardenID uint, mode entities.IrrigationMode) error
	UpdateGardenDevice(ctx context.Context, gardenID uint, deviceID string) error
	UpdateGardenPumpStatus(ctx context.Context, gardenID uint, upd PumpStatusUpdate) error

	DeviceByID(ctx context.Context, deviceID string) (*entities.Device, error)
	EnsureDevice(ctx context.Context, deviceID string) (*entities.Device, error)
	UpsertDeviceTelemetry(ctx context.Context, deviceID string, t messages.Telemetry, at time.Time) error
	UpsertDeviceConnected(ctx context.Context, deviceID string, connected bool, at time.Time) error

	PlantByID(ctx context.Context, id uint) (*entities.Plant, error)

	CreateIrrigationRun(ctx context.Context, gardenID uint, running bool, at time.Time) (*entities.IrrigationRun, error)
	LatestIrrigationRun(ctx context.Context, gardenID uint) (*entities.IrrigationRun, error)
	SetIrrigationRunRunning(ctx context.Context, runID uint, running bool) error

	CreateIrrigationLog(ctx context.Context, entry *entities.IrrigationLog) error

	EnabledSchedules(ctx context.Context, gardenID uint) ([]entities.Schedule, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates the GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GardenByID(ctx context.Context, id uint) (*entities.Garden, error) {
	var g entities.Garden
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (s *gormStore) GardenByDeviceID(ctx context.Context, deviceID string) (*entities.Garden, error) {
	var g entities.Garden
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&g).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (s *gormStore) DeviceBoundElsewhere(ctx context.Context, deviceID string, gardenID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.Garden{}).
		Where("device_id = ? AND id <> ?", deviceID, gardenID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) UpdateGardenMode(ctx context.Context, gardenID uint, mode entities.IrrigationMode) error {
	return s.updateGarden(ctx, gardenID, map[string]any{"irrigation_mode": mode})
}

func (s *gormStore) UpdateGardenDevice(ctx context.Context, gardenID uint, deviceID string) error {
	return s.updateGarden(ctx, gardenID, map[string]any{"device_id": deviceID})
}

func (s *gormStore) UpdateGardenPumpStatus(ctx context.Context, gardenID uint, upd PumpStatusUpdate) error {
	return s.updateGarden(ctx, gardenID, map[string]any{
		"pump_status":           upd.Status,
		"pump_status_message":   upd.Message,
		"last_pump_feedback_at": upd.At,
		"last_pump_success":     upd.Success,
	})
}

func (s *gormStore) updateGarden(ctx context.Context, gardenID uint, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&entities.Garden{}).Where("id = ?", gardenID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("garden %d: %w", gardenID, ErrNotFound)
	}
	return nil
}

func (s *gormStore) DeviceByID(ctx context.Context, deviceID string) (*entities.Device, error) {
	var d entities.Device
	if err := s.db.WithContext(ctx).First(&d, "device_id = ?", deviceID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (s *gormStore) EnsureDevice(ctx context.Context, deviceID string) (*entities.Device, error) {
	d := entities.Device{DeviceID: deviceID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoNothing: true,
	}).Create(&d).Error
	if err != nil {
		return nil, err
	}
	return s.DeviceByID(ctx, deviceID)
}

func (s *gormStore) UpsertDeviceTelemetry(ctx context.Context, deviceID string, t messages.Telemetry, at time.Time) error {
	d := entities.Device{
		DeviceID:     deviceID,
		Temperature:  t.Temperature,
		AirHumidity:  t.AirHumidity,
		SoilMoisture: t.SoilMoisture,
		Connected:    true,
		LastUpdated:  &at,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"temperature", "air_humidity", "soil_moisture", "connected", "last_updated", "updated_at",
		}),
	}).Create(&d).Error
}

func (s *gormStore) UpsertDeviceConnected(ctx context.Context, deviceID string, connected bool, at time.Time) error {
	d := entities.Device{
		DeviceID:    deviceID,
		Connected:   connected,
		LastUpdated: &at,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"connected", "last_updated", "updated_at",
		}),
	}).Create(&d).Error
}

func (s *gormStore) PlantByID(ctx context.Context, id uint) (*entities.Plant, error) {
	var p entities.Plant
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *gormStore) CreateIrrigationRun(ctx context.Context, gardenID uint, running bool, at time.Time) (*entities.IrrigationRun, error) {
	run := entities.IrrigationRun{GardenID: gardenID, Running: running, Timestamp: at}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *gormStore) LatestIrrigationRun(ctx context.Context, gardenID uint) (*entities.IrrigationRun, error) {
	var run entities.IrrigationRun
	err := s.db.WithContext(ctx).
		Where("garden_id = ?", gardenID).
		Order("timestamp DESC, id DESC").
		First(&run).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &run, nil
}

func (s *gormStore) SetIrrigationRunRunning(ctx context.Context, runID uint, running bool) error {
	return s.db.WithContext(ctx).Model(&entities.IrrigationRun{}).
		Where("id = ?", runID).
		Update("running", running).Error
}

func (s *gormStore) CreateIrrigationLog(ctx context.Context, entry *entities.IrrigationLog) error {
	if entry.IrrigationTime.IsZero() {
		entry.IrrigationTime = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *gormStore) EnabledSchedules(ctx context.Context, gardenID uint) ([]entities.Schedule, error) {
	var out []entities.Schedule
	err := s.db.WithContext(ctx).
		Where("garden_id = ? AND enabled = ?", gardenID, true).
		Order("date ASC, time ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

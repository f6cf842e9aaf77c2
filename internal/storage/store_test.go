package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
)

func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewGormStore(db), db
}

func fptr(v float64) *float64 { return &v }

func TestGardenLookups(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.Garden{
		Name: "herbs", UserID: 7, PlantID: 1, DeviceID: "dev-1",
		IrrigationMode: entities.ModeNone, PumpStatus: entities.PumpIdle,
	}).Error)

	g, err := store.GardenByDeviceID(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "herbs", g.Name)

	byID, err := store.GardenByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, byID.ID)

	_, err = store.GardenByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GardenByDeviceID(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceBoundElsewhere(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.Garden{
		Name: "a", UserID: 1, PlantID: 1, DeviceID: "dev-1",
		IrrigationMode: entities.ModeNone, PumpStatus: entities.PumpIdle,
	}).Error)
	require.NoError(t, db.Create(&entities.Garden{
		Name: "b", UserID: 2, PlantID: 1, DeviceID: entities.PlaceholderDeviceID,
		IrrigationMode: entities.ModeNone, PumpStatus: entities.PumpIdle,
	}).Error)

	taken, err := store.DeviceBoundElsewhere(ctx, "dev-1", 2)
	require.NoError(t, err)
	assert.True(t, taken)

	// the owning garden itself does not count as a conflict
	taken, err = store.DeviceBoundElsewhere(ctx, "dev-1", 1)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = store.DeviceBoundElsewhere(ctx, "dev-9", 1)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUpdateGardenPumpStatus(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.Garden{
		Name: "a", UserID: 1, PlantID: 1, DeviceID: "dev-1",
		IrrigationMode: entities.ModeNone, PumpStatus: entities.PumpIdle,
	}).Error)

	yes := true
	at := time.Now()
	err := store.UpdateGardenPumpStatus(ctx, 1, PumpStatusUpdate{
		Status: entities.PumpOn, Message: "confirmed", At: at, Success: &yes,
	})
	require.NoError(t, err)

	g, err := store.GardenByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.PumpOn, g.PumpStatus)
	assert.Equal(t, "confirmed", g.PumpStatusMessage)
	require.NotNil(t, g.LastPumpSuccess)
	assert.True(t, *g.LastPumpSuccess)

	err = store.UpdateGardenPumpStatus(ctx, 999, PumpStatusUpdate{Status: entities.PumpOn, At: at})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureDeviceIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	d1, err := store.EnsureDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", d1.DeviceID)

	now := time.Now()
	require.NoError(t, store.UpsertDeviceTelemetry(ctx, "dev-1", messages.Telemetry{
		Temperature: fptr(21), AirHumidity: fptr(55), SoilMoisture: fptr(40),
	}, now))

	// a second ensure must not wipe the telemetry
	d2, err := store.EnsureDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, d2.Temperature)
	assert.Equal(t, 21.0, *d2.Temperature)
	assert.True(t, d2.Connected)
}

func TestUpsertDeviceConnectedCreatesRow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDeviceConnected(ctx, "dev-2", true, time.Now()))
	d, err := store.DeviceByID(ctx, "dev-2")
	require.NoError(t, err)
	assert.True(t, d.Connected)

	require.NoError(t, store.UpsertDeviceConnected(ctx, "dev-2", false, time.Now()))
	d, err = store.DeviceByID(ctx, "dev-2")
	require.NoError(t, err)
	assert.False(t, d.Connected)
}

func TestLatestIrrigationRunOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	_, err := store.CreateIrrigationRun(ctx, 1, false, base.Add(-time.Hour))
	require.NoError(t, err)
	second, err := store.CreateIrrigationRun(ctx, 1, true, base)
	require.NoError(t, err)
	_, err = store.CreateIrrigationRun(ctx, 2, true, base.Add(time.Hour))
	require.NoError(t, err)

	latest, err := store.LatestIrrigationRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, store.SetIrrigationRunRunning(ctx, second.ID, false))
	latest, err = store.LatestIrrigationRun(ctx, 1)
	require.NoError(t, err)
	assert.False(t, latest.Running)

	_, err = store.LatestIrrigationRun(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEnabledSchedulesFilterAndOrder(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.Schedule{GardenID: 1, Time: "20:00", DurationSeconds: 60, Repeat: "daily", Enabled: true}).Error)
	require.NoError(t, db.Create(&entities.Schedule{GardenID: 1, Time: "06:00", DurationSeconds: 60, Repeat: "daily", Enabled: true}).Error)
	require.NoError(t, db.Create(&entities.Schedule{GardenID: 1, Time: "12:00", DurationSeconds: 60, Repeat: "daily", Enabled: false}).Error)
	require.NoError(t, db.Create(&entities.Schedule{GardenID: 2, Time: "08:00", DurationSeconds: 60, Repeat: "daily", Enabled: true}).Error)

	got, err := store.EnabledSchedules(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "06:00", got[0].Time)
	assert.Equal(t, "20:00", got[1].Time)
}

func TestCreateIrrigationLogDefaultsTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entry := &entities.IrrigationLog{GardenID: 1, DurationSeconds: 90, Status: entities.OutcomeCompleted, Type: "manual"}
	require.NoError(t, store.CreateIrrigationLog(ctx, entry))
	assert.False(t, entry.IrrigationTime.IsZero())
}

func TestPlantByID(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&entities.Plant{Name: "fern", MinSoilMoisture: fptr(30)}).Error)

	p, err := store.PlantByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fern", p.Name)

	_, err = store.PlantByID(ctx, 9)
	require.ErrorIs(t, err, ErrNotFound)
}

package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
)

func fptr(v float64) *float64 { return &v }

func telemetry(temp, humi, soil float64) messages.Telemetry {
	return messages.Telemetry{Temperature: fptr(temp), AirHumidity: fptr(humi), SoilMoisture: fptr(soil)}
}

func seedAutoGarden(store *memStore) {
	store.addGarden(entities.Garden{ID: 1, UserID: 7, PlantID: 3, DeviceID: "dev-1", IrrigationMode: entities.ModeAuto})
	store.addPlant(entities.Plant{
		ID: 3, Name: "basil",
		MinTemperature: fptr(10), MaxTemperature: fptr(30),
		MinAirHumidity: fptr(40), MaxAirHumidity: fptr(80),
		MinSoilMoisture: fptr(25), MaxSoilMoisture: fptr(70),
	})
}

func TestCollectBreaches(t *testing.T) {
	plant := &entities.Plant{
		MinTemperature: fptr(10), MaxTemperature: fptr(30),
		MinAirHumidity: fptr(40), MaxAirHumidity: fptr(80),
		MinSoilMoisture: fptr(25), MaxSoilMoisture: fptr(70),
	}

	assert.Empty(t, collectBreaches(plant, telemetry(20, 60, 50)))

	// exactly on a bound is inside it
	assert.Empty(t, collectBreaches(plant, telemetry(30, 40, 25)))

	got := collectBreaches(plant, telemetry(31, 39, 24))
	assert.Len(t, got, 3)

	// soil only alerts low, even past its configured max
	assert.Empty(t, collectBreaches(plant, telemetry(20, 60, 99)))

	// unconfigured bounds never alert
	assert.Empty(t, collectBreaches(&entities.Plant{}, telemetry(-40, 200, 0)))
}

func TestTelemetryBreachInAutoRearmsDevice(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeReadings{}, pub)

	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 10)))

	selects := pub.byPrefix("selects/dev-1")
	require.Len(t, selects, 1)
	assert.Equal(t, "2", selects[0].Payload)

	bios := pub.byPrefix("bioCycle/dev-1")
	require.Len(t, bios, 1)
	var bio messages.BioCycle
	require.NoError(t, json.Unmarshal([]byte(bios[0].Payload), &bio))
	assert.Equal(t, 30.0, bio.MaxTemperature)
	assert.Equal(t, 80.0, bio.MaxAirHumidity)
	assert.Equal(t, 25.0, bio.MinSoilMoisture)
}

func TestTelemetryOutsideAutoSendsNothing(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	require.NoError(t, store.UpdateGardenMode(context.Background(), 1, entities.ModeManual))
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeReadings{}, pub)

	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 10)))
	assert.Empty(t, pub.all())
}

func TestTelemetryInBoundsStillRearmsAutoDevice(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeReadings{}, pub)

	// the refresh is proactive, not tied to a breach
	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 50)))
	assert.Len(t, pub.byPrefix("selects/dev-1"), 1)
	assert.Len(t, pub.byPrefix("bioCycle/dev-1"), 1)
}

func TestTelemetryBroadcastFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	pub := &fakePublisher{failPrefix: "selects/"}
	svc := newTestService(store, &fakeReadings{}, pub)

	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 10)))
}

func TestTelemetryPersistsAndArchives(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	readings := &fakeReadings{}
	svc := newTestService(store, readings, &fakePublisher{})

	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 50)))

	dev, err := store.DeviceByID(context.Background(), "dev-1")
	require.NoError(t, err)
	require.NotNil(t, dev.Temperature)
	assert.Equal(t, 20.0, *dev.Temperature)
	assert.True(t, dev.Connected)

	got := readings.all()
	require.Len(t, got, 1)
	assert.Equal(t, uint(1), got[0].GardenID)
	assert.Equal(t, "dev-1", got[0].DeviceID)
}

func TestTelemetryFromUnboundDeviceStillPersisted(t *testing.T) {
	store := newMemStore()
	readings := &fakeReadings{}
	svc := newTestService(store, readings, &fakePublisher{})

	require.NoError(t, svc.HandleTelemetry(context.Background(), "stray", telemetry(20, 60, 50)))

	_, err := store.DeviceByID(context.Background(), "stray")
	require.NoError(t, err)
	// no garden, so nothing reaches the archive
	assert.Empty(t, readings.all())
}

func TestTelemetryIncompleteDropped(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	svc := newTestService(store, &fakeReadings{}, &fakePublisher{})

	partial := messages.Telemetry{Temperature: fptr(20)}
	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", partial))

	_, err := store.DeviceByID(context.Background(), "dev-1")
	assert.Error(t, err)
}

func TestTelemetryArchiveFailureDoesNotBlockEvaluation(t *testing.T) {
	store := newMemStore()
	seedAutoGarden(store)
	readings := &fakeReadings{err: assert.AnError}
	pub := &fakePublisher{}
	svc := newTestService(store, readings, pub)

	require.NoError(t, svc.HandleTelemetry(context.Background(), "dev-1", telemetry(20, 60, 10)))
	assert.Len(t, pub.byPrefix("selects/dev-1"), 1)
}

package storage

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"

	"github.com/verdra/garden-gateway/internal/model/messages"
)

// InfluxConfig configures the reading history bucket.
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// ReadingWriter persists one sensor reading scoped to a garden. The
// gateway never reads these back; dashboards do.
type ReadingWriter interface {
	WriteReading(ctx context.Context, gardenID uint, deviceID string, t messages.Telemetry, at time.Time) error
}

// influxReadings writes reading points through a circuit breaker so a
// slow or down Influx cannot stall the telemetry path for long.
type influxReadings struct {
	writeAPI    api.WriteAPIBlocking
	measurement string
	breaker     *gobreaker.CircuitBreaker
}

// NewInfluxReadings builds the Influx-backed reading writer.
func NewInfluxReadings(cfg InfluxConfig) (ReadingWriter, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "garden_reading"
	}
	return &influxReadings{
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
		breaker:     newReadingsBreaker(),
	}, nil
}

func newReadingsBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "influx-readings",
		Interval: 60 * time.Second,
		Timeout:  15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("storage: breaker %s %s -> %s", name, from, to)
		},
	})
}

func (w *influxReadings) WriteReading(ctx context.Context, gardenID uint, deviceID string, t messages.Telemetry, at time.Time) error {
	tags := map[string]string{
		"garden_id": strconv.FormatUint(uint64(gardenID), 10),
		"device_id": deviceID,
	}
	fields := map[string]interface{}{
		"temperature":   *t.Temperature,
		"air_humidity":  *t.AirHumidity,
		"soil_moisture": *t.SoilMoisture,
	}
	point := influxdb2.NewPoint(w.measurement, tags, fields, at)

	_, err := w.breaker.Execute(func() (any, error) {
		return nil, w.writeAPI.WritePoint(ctx, point)
	})
	if err != nil {
		return fmt.Errorf("write reading for garden %d: %w", gardenID, err)
	}
	return nil
}

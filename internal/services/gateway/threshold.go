package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/internal/storage"
)

// thresholdBreach is one channel falling outside its plant bounds.
type thresholdBreach struct {
	channel string
	value   float64
	bound   float64
	high    bool
}

func (b thresholdBreach) String() string {
	dir := "below"
	if b.high {
		dir = "above"
	}
	return fmt.Sprintf("%s %.2f %s bound %.2f", b.channel, b.value, dir, b.bound)
}

// evaluateThresholds compares a complete reading against the garden's
// plant profile. It only runs in auto mode; elsewhere the gateway does
// not second-guess the strategy in charge. Bounds are strict: a value
// exactly on the bound is fine. Soil moisture only alerts low; soggy
// soil drains on its own.
//
// The alerts are informational. The evaluator never commands the pump
// itself: every auto-mode reading instead re-arms the device's local
// controller with the selector and the bio cycle thresholds, so the
// board keeps irrigating correctly even if it rebooted since the last
// push. Broadcast failures are logged, never propagated.
func (s *Service) evaluateThresholds(ctx context.Context, garden *entities.Garden, t messages.Telemetry) error {
	if garden.IrrigationMode != entities.ModeAuto {
		return nil
	}

	plant, err := s.plantProfile(ctx, garden.PlantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("gateway: garden %d references missing plant %d", garden.ID, garden.PlantID)
			return nil
		}
		return fmt.Errorf("plant profile %d: %w", garden.PlantID, err)
	}

	for _, b := range collectBreaches(plant, t) {
		s.metrics.alert(b.channel)
		log.Printf("gateway: garden %d threshold breach: %s", garden.ID, b)
	}

	code, _ := entities.ModeAuto.SelectorCode()
	if err := s.commander.SendModeSelector(garden.DeviceID, code); err != nil {
		log.Printf("gateway: selector refresh for garden %d failed: %v", garden.ID, err)
		return nil
	}
	if err := s.commander.SendBioCycle(garden.DeviceID, bioCycleFor(plant)); err != nil {
		log.Printf("gateway: bio cycle refresh for garden %d failed: %v", garden.ID, err)
	}
	return nil
}

// collectBreaches checks every configured bound. Nil bounds are
// unconfigured and never alert.
func collectBreaches(p *entities.Plant, t messages.Telemetry) []thresholdBreach {
	var out []thresholdBreach

	check := func(channel string, value, min, max *float64, lowOnly bool) {
		if value == nil {
			return
		}
		if min != nil && *value < *min {
			out = append(out, thresholdBreach{channel: channel, value: *value, bound: *min})
		}
		if !lowOnly && max != nil && *value > *max {
			out = append(out, thresholdBreach{channel: channel, value: *value, bound: *max, high: true})
		}
	}

	check("temperature", t.Temperature, p.MinTemperature, p.MaxTemperature, false)
	check("air_humidity", t.AirHumidity, p.MinAirHumidity, p.MaxAirHumidity, false)
	check("soil_moisture", t.SoilMoisture, p.MinSoilMoisture, nil, true)
	return out
}

// bioCycleFor flattens a plant profile into the device payload. An
// unconfigured bound is pushed as zero; the device treats zero as
// disabled.
func bioCycleFor(p *entities.Plant) messages.BioCycle {
	bio := messages.BioCycle{}
	if p.MaxTemperature != nil {
		bio.MaxTemperature = *p.MaxTemperature
	}
	if p.MaxAirHumidity != nil {
		bio.MaxAirHumidity = *p.MaxAirHumidity
	}
	if p.MinSoilMoisture != nil {
		bio.MinSoilMoisture = *p.MinSoilMoisture
	}
	return bio
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/internal/storage"
)

// HandleTelemetry processes one conditions message: persist the latest
// readings on the device row, archive them to the time-series store and
// run the threshold evaluation for the owning garden.
//
// Telemetry from a device no garden claims is still persisted; the
// device row is the discovery surface for binding a board that started
// publishing before anyone registered it.
func (s *Service) HandleTelemetry(ctx context.Context, deviceID string, t messages.Telemetry) error {
	if !t.Complete() {
		s.metrics.dropped("telemetry_incomplete")
		log.Printf("gateway: incomplete telemetry from %s dropped", deviceID)
		return nil
	}

	now := time.Now()
	if err := s.store.UpsertDeviceTelemetry(ctx, deviceID, t, now); err != nil {
		return fmt.Errorf("persist telemetry for %s: %w", deviceID, err)
	}

	garden, err := s.store.GardenByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("garden lookup for %s: %w", deviceID, err)
	}

	// Archive failures never block evaluation; the breaker inside the
	// writer sheds load when the store is down.
	if err := s.readings.WriteReading(ctx, garden.ID, deviceID, t, now); err != nil {
		log.Printf("gateway: reading for garden %d not archived: %v", garden.ID, err)
	}

	return s.evaluateThresholds(ctx, garden, t)
}

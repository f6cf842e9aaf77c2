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

// HandleDeviceLog records a device-reported irrigation event. The
// device emits one after every completed watering, whatever triggered
// it; a manual run reported done also releases the manual mode the
// start flow engaged.
func (s *Service) HandleDeviceLog(ctx context.Context, deviceID string, event messages.DeviceLogEvent) error {
	if !event.Complete() {
		s.metrics.dropped("log_incomplete")
		log.Printf("gateway: incomplete log event from %s dropped", deviceID)
		return nil
	}

	garden, err := s.store.GardenByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.dropped("log_unbound")
			log.Printf("gateway: log event from unbound device %s dropped", deviceID)
			return nil
		}
		return fmt.Errorf("log lookup for %s: %w", deviceID, err)
	}

	entry := &entities.IrrigationLog{
		GardenID:        garden.ID,
		IrrigationTime:  event.IrrigationTime(),
		DurationSeconds: *event.Duration,
		Status:          entities.OutcomeCompleted,
		Type:            string(garden.IrrigationMode),
	}
	if err := s.store.CreateIrrigationLog(ctx, entry); err != nil {
		return fmt.Errorf("log event for garden %d: %w", garden.ID, err)
	}

	if garden.IrrigationMode == entities.ModeManual {
		if run, err := s.store.LatestIrrigationRun(ctx, garden.ID); err == nil && run.Running {
			if err := s.store.SetIrrigationRunRunning(ctx, run.ID, false); err != nil {
				log.Printf("gateway: run %d not closed on log event: %v", run.ID, err)
			}
		}
		if err := s.store.UpdateGardenMode(ctx, garden.ID, entities.ModeNone); err != nil {
			log.Printf("gateway: garden %d mode not reset on log event: %v", garden.ID, err)
		}
	}

	log.Printf("gateway: log event from %s: garden %d watered %ds", deviceID, garden.ID, *event.Duration)
	return nil
}

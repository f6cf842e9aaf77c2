package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/verdra/garden-gateway/internal/model/entities"
)

// BindDevice attaches a device to a garden. The conflict check runs
// before anything is published: a device already claimed by another
// garden must never receive a second bind notice. The liveness probe
// result is recorded but does not block the bind; boards are routinely
// registered before they are powered on.
func (s *Service) BindDevice(ctx context.Context, userID, gardenID uint, deviceID string) error {
	if deviceID == "" || deviceID == entities.PlaceholderDeviceID {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
	}
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}

	if _, err := s.store.EnsureDevice(ctx, deviceID); err != nil {
		return fmt.Errorf("ensure device %s: %w", deviceID, err)
	}

	taken, err := s.store.DeviceBoundElsewhere(ctx, deviceID, gardenID)
	if err != nil {
		return fmt.Errorf("conflict check for %s: %w", deviceID, err)
	}
	if taken {
		return fmt.Errorf("%w: device %s", ErrDeviceConflict, deviceID)
	}

	if status, err := s.CheckConnection(ctx, deviceID); err != nil {
		log.Printf("gateway: liveness check for %s during bind failed: %v", deviceID, err)
	} else {
		connected := status == ConnOn
		if err := s.store.UpsertDeviceConnected(ctx, deviceID, connected, time.Now()); err != nil {
			log.Printf("gateway: connectivity for %s not recorded: %v", deviceID, err)
		}
	}

	// Release the previous board before the garden row moves on.
	if garden.HasDevice() && garden.DeviceID != deviceID {
		if err := s.commander.SendGardenNotice(garden.DeviceID, false); err != nil {
			log.Printf("gateway: unbind notice to %s failed: %v", garden.DeviceID, err)
		}
	}

	if err := s.store.UpdateGardenDevice(ctx, gardenID, deviceID); err != nil {
		return fmt.Errorf("bind device %s to garden %d: %w", deviceID, gardenID, err)
	}
	if err := s.commander.SendGardenNotice(deviceID, true); err != nil {
		return fmt.Errorf("bind notice to %s: %w", deviceID, err)
	}

	garden.DeviceID = deviceID
	if err := s.syncSchedules(ctx, garden); err != nil {
		log.Printf("gateway: schedule sync after binding %s: %v", deviceID, err)
	}
	log.Printf("gateway: device %s bound to garden %d", deviceID, gardenID)
	return nil
}

// UnbindDevice detaches a garden's device, resetting the garden to the
// placeholder and no strategy. The off notice is sent first so a
// publish failure leaves the binding intact.
func (s *Service) UnbindDevice(ctx context.Context, userID, gardenID uint) error {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if !garden.HasDevice() {
		return ErrDeviceNotBound
	}

	if err := s.commander.SendGardenNotice(garden.DeviceID, false); err != nil {
		return fmt.Errorf("unbind notice to %s: %w", garden.DeviceID, err)
	}

	if err := s.store.UpdateGardenDevice(ctx, gardenID, entities.PlaceholderDeviceID); err != nil {
		return fmt.Errorf("unbind garden %d: %w", gardenID, err)
	}
	if err := s.store.UpdateGardenMode(ctx, gardenID, entities.ModeNone); err != nil {
		return fmt.Errorf("reset garden %d mode: %w", gardenID, err)
	}
	log.Printf("gateway: device %s unbound from garden %d", garden.DeviceID, gardenID)
	return nil
}

// ReleaseDevice tells a garden's device to stand down without touching
// the database. The CRUD layer calls this while deleting the garden
// row itself.
func (s *Service) ReleaseDevice(garden *entities.Garden) {
	if garden == nil || !garden.HasDevice() {
		return
	}
	if err := s.commander.SendGardenNotice(garden.DeviceID, false); err != nil {
		log.Printf("gateway: release notice to %s failed: %v", garden.DeviceID, err)
	}
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/storage"
)

const (
	defaultRunMinutes = 3
	minRunMinutes     = 1
	maxRunMinutes     = 60
)

// ErrNoFeedback is returned when a started pump never reports back
// within the feedback window.
var ErrNoFeedback = errors.New("no device feedback")

// PumpStatusView is the caller-facing snapshot of a garden's pump.
type PumpStatusView struct {
	Status         entities.PumpStatus `json:"status"`
	Message        string              `json:"message,omitempty"`
	Success        *bool               `json:"success"`
	LastFeedbackAt *time.Time          `json:"lastFeedbackAt"`
}

// StartIrrigation runs the manual pump lifecycle for a garden:
// pending status, manual mode, selector and pump commands, a run
// record, then a bounded wait for the device to confirm. The wait ends
// early on feedback; silence past the window is an error outcome.
//
// durationMinutes is clamped to [1,60]; zero or negative takes the
// default of 3.
func (s *Service) StartIrrigation(ctx context.Context, userID, gardenID uint, durationMinutes int) error {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if !garden.HasDevice() {
		return ErrDeviceNotBound
	}

	if durationMinutes <= 0 {
		durationMinutes = defaultRunMinutes
	}
	if durationMinutes < minRunMinutes {
		durationMinutes = minRunMinutes
	}
	if durationMinutes > maxRunMinutes {
		durationMinutes = maxRunMinutes
	}
	seconds := durationMinutes * 60

	now := time.Now()
	pending := storage.PumpStatusUpdate{Status: entities.PumpPending, Message: "start requested", At: now}
	if err := s.store.UpdateGardenPumpStatus(ctx, gardenID, pending); err != nil {
		return fmt.Errorf("mark garden %d pending: %w", gardenID, err)
	}
	if err := s.store.UpdateGardenMode(ctx, gardenID, entities.ModeManual); err != nil {
		return fmt.Errorf("set garden %d manual: %w", gardenID, err)
	}

	// The waiter subscribes before the commands go out so feedback
	// racing the publish is never missed.
	wake := s.notifier.subscribe(gardenID)
	defer s.notifier.unsubscribe(gardenID, wake)

	code, _ := entities.ModeManual.SelectorCode()
	if err := s.commander.SendModeSelector(garden.DeviceID, code); err != nil {
		s.failStart(ctx, gardenID, "selector command failed")
		return fmt.Errorf("selector for garden %d: %w", gardenID, err)
	}
	if err := s.commander.SendPumpCommand(garden.DeviceID, seconds); err != nil {
		s.failStart(ctx, gardenID, "pump command failed")
		return fmt.Errorf("pump command for garden %d: %w", gardenID, err)
	}

	run, err := s.store.CreateIrrigationRun(ctx, gardenID, false, now)
	if err != nil {
		return fmt.Errorf("create run for garden %d: %w", gardenID, err)
	}
	log.Printf("gateway: garden %d irrigation started for %ds, run %d", gardenID, seconds, run.ID)

	return s.awaitStartFeedback(ctx, gardenID, run.ID, wake)
}

// awaitStartFeedback blocks until the garden leaves pending, the
// feedback window closes or ctx ends. The notifier wakes it promptly;
// the ticker is the safety net for a signal lost across processes.
func (s *Service) awaitStartFeedback(ctx context.Context, gardenID, runID uint, wake <-chan struct{}) error {
	deadline := time.NewTimer(s.feedbackTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(s.feedbackPoll)
	defer poll.Stop()

	for {
		garden, err := s.store.GardenByID(ctx, gardenID)
		if err != nil {
			return fmt.Errorf("poll garden %d: %w", gardenID, err)
		}
		switch garden.PumpStatus {
		case entities.PumpOn:
			return nil
		case entities.PumpError:
			return fmt.Errorf("garden %d pump failed: %s", gardenID, garden.PumpStatusMessage)
		case entities.PumpOff:
			// stopped before it confirmed starting; treat as resolved
			return nil
		}

		select {
		case <-wake:
		case <-poll.C:
		case <-deadline.C:
			s.metrics.pumpTimeout()
			s.failStart(ctx, gardenID, ErrNoFeedback.Error())
			if err := s.store.SetIrrigationRunRunning(ctx, runID, false); err != nil {
				log.Printf("gateway: run %d not closed after timeout: %v", runID, err)
			}
			return fmt.Errorf("garden %d: %w", gardenID, ErrNoFeedback)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// failStart records an error outcome on the garden; best effort, the
// original failure is what the caller sees.
func (s *Service) failStart(ctx context.Context, gardenID uint, message string) {
	f := false
	upd := storage.PumpStatusUpdate{Status: entities.PumpError, Message: message, At: time.Now(), Success: &f}
	if err := s.store.UpdateGardenPumpStatus(ctx, gardenID, upd); err != nil {
		log.Printf("gateway: garden %d error status not recorded: %v", gardenID, err)
	}
}

// StopIrrigation halts the pump immediately. Unlike start there is no
// feedback wait: the stop notice is fire-and-forget and the garden is
// settled to off right away, with the device's own terminal feedback
// reconciling the history later.
func (s *Service) StopIrrigation(ctx context.Context, userID, gardenID uint) error {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if !garden.HasDevice() {
		return ErrDeviceNotBound
	}

	if err := s.commander.SendGardenNotice(garden.DeviceID, false); err != nil {
		return fmt.Errorf("stop notice for garden %d: %w", gardenID, err)
	}

	if err := s.store.UpdateGardenMode(ctx, gardenID, entities.ModeNone); err != nil {
		return fmt.Errorf("reset garden %d mode: %w", gardenID, err)
	}
	upd := storage.PumpStatusUpdate{Status: entities.PumpOff, Message: "stopped by user", At: time.Now()}
	if err := s.store.UpdateGardenPumpStatus(ctx, gardenID, upd); err != nil {
		return fmt.Errorf("mark garden %d off: %w", gardenID, err)
	}

	if run, err := s.store.LatestIrrigationRun(ctx, gardenID); err == nil {
		if run.Running {
			if err := s.store.SetIrrigationRunRunning(ctx, run.ID, false); err != nil {
				log.Printf("gateway: run %d not closed on stop: %v", run.ID, err)
			}
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("latest run for garden %d: %w", gardenID, err)
	}
	if _, err := s.store.CreateIrrigationRun(ctx, gardenID, false, time.Now()); err != nil {
		return fmt.Errorf("record stop for garden %d: %w", gardenID, err)
	}

	log.Printf("gateway: garden %d irrigation stopped", gardenID)
	return nil
}

// UpdateMode switches a garden's irrigation strategy and, when a real
// device is bound and the mode drives the device, refreshes its
// selector. Auto mode also re-arms the local thresholds.
func (s *Service) UpdateMode(ctx context.Context, userID, gardenID uint, mode entities.IrrigationMode) error {
	if !entities.ValidMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateGardenMode(ctx, gardenID, mode); err != nil {
		return fmt.Errorf("set garden %d mode: %w", gardenID, err)
	}

	code, drivesDevice := mode.SelectorCode()
	if !drivesDevice || !garden.HasDevice() {
		return nil
	}
	if err := s.commander.SendModeSelector(garden.DeviceID, code); err != nil {
		return fmt.Errorf("selector for garden %d: %w", gardenID, err)
	}
	if mode == entities.ModeAuto {
		plant, err := s.plantProfile(ctx, garden.PlantID)
		if err != nil {
			log.Printf("gateway: bio cycle for garden %d skipped: %v", gardenID, err)
			return nil
		}
		if err := s.commander.SendBioCycle(garden.DeviceID, bioCycleFor(plant)); err != nil {
			return fmt.Errorf("bio cycle for garden %d: %w", gardenID, err)
		}
	}
	return nil
}

// GetIrrigationMode reads the current mode, ownership checked.
func (s *Service) GetIrrigationMode(ctx context.Context, userID, gardenID uint) (entities.IrrigationMode, error) {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return "", err
	}
	return garden.IrrigationMode, nil
}

// GetPumpStatus reads the pump snapshot, ownership checked.
func (s *Service) GetPumpStatus(ctx context.Context, userID, gardenID uint) (*PumpStatusView, error) {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return nil, err
	}
	return &PumpStatusView{
		Status:         garden.PumpStatus,
		Message:        garden.PumpStatusMessage,
		Success:        garden.LastPumpSuccess,
		LastFeedbackAt: garden.LastPumpFeedbackAt,
	}, nil
}

// ownedGarden loads a garden and enforces that userID owns it.
func (s *Service) ownedGarden(ctx context.Context, userID, gardenID uint) (*entities.Garden, error) {
	garden, err := s.store.GardenByID(ctx, gardenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGardenNotFound
		}
		return nil, err
	}
	if garden.UserID != userID {
		return nil, ErrForbidden
	}
	return garden, nil
}

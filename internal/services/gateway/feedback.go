package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/internal/storage"
)

// pumpStateSynonyms maps every state spelling firmware has been seen to
// emit onto the canonical pump status. Anything outside the table falls
// back to idle rather than guessing.
var pumpStateSynonyms = map[string]entities.PumpStatus{
	"on":      entities.PumpOn,
	"started": entities.PumpOn,
	"start":   entities.PumpOn,
	"running": entities.PumpOn,
	"1":       entities.PumpOn,
	"true":    entities.PumpOn,

	"pending":    entities.PumpPending,
	"waiting":    entities.PumpPending,
	"processing": entities.PumpPending,

	"error":  entities.PumpError,
	"failed": entities.PumpError,
	"fail":   entities.PumpError,

	"off":     entities.PumpOff,
	"stopped": entities.PumpOff,
	"stop":    entities.PumpOff,
	"0":       entities.PumpOff,
	"false":   entities.PumpOff,
}

// normalizePumpState collapses the free-form device state field to one
// canonical status.
func normalizePumpState(raw any) entities.PumpStatus {
	switch v := raw.(type) {
	case bool:
		if v {
			return entities.PumpOn
		}
		return entities.PumpOff
	case float64:
		if v == 0 {
			return entities.PumpOff
		}
		return entities.PumpOn
	case string:
		if st, ok := pumpStateSynonyms[strings.ToLower(strings.TrimSpace(v))]; ok {
			return st
		}
	}
	return entities.PumpIdle
}

// deriveSuccess resolves the tri-state outcome: an explicit success
// flag wins, otherwise a terminal status implies one, otherwise the
// outcome stays unknown.
func deriveSuccess(explicit *bool, status entities.PumpStatus) *bool {
	if explicit != nil {
		return explicit
	}
	switch status {
	case entities.PumpError:
		f := false
		return &f
	case entities.PumpOn:
		t := true
		return &t
	}
	return nil
}

// HandlePumpFeedback processes one control feedback message: normalize
// the state, persist it on the owning garden, keep the latest run row
// in step, log terminal outcomes and wake any start waiter.
func (s *Service) HandlePumpFeedback(ctx context.Context, deviceID string, fb messages.PumpFeedback) error {
	garden, err := s.store.GardenByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.dropped("feedback_unbound")
			log.Printf("gateway: feedback from unbound device %s dropped", deviceID)
			return nil
		}
		return fmt.Errorf("feedback lookup for %s: %w", deviceID, err)
	}

	status := normalizePumpState(fb.RawState())
	success := deriveSuccess(fb.Success, status)
	if status == entities.PumpOn && success != nil && !*success {
		// a device can report "on" while flagging failure
		status = entities.PumpError
	}

	message := fb.Message
	if message == "" {
		message = fb.Error
	}

	now := time.Now()
	upd := storage.PumpStatusUpdate{Status: status, Message: message, At: now, Success: success}
	if err := s.store.UpdateGardenPumpStatus(ctx, garden.ID, upd); err != nil {
		return fmt.Errorf("persist pump status for garden %d: %w", garden.ID, err)
	}

	running := status == entities.PumpOn || status == entities.PumpPending
	if run, err := s.store.LatestIrrigationRun(ctx, garden.ID); err == nil {
		if run.Running != running {
			if err := s.store.SetIrrigationRunRunning(ctx, run.ID, running); err != nil {
				log.Printf("gateway: run %d for garden %d not updated: %v", run.ID, garden.ID, err)
			}
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("latest run for garden %d: %w", garden.ID, err)
	}

	if status.Terminal() {
		outcome := entities.OutcomeCompleted
		if status == entities.PumpError {
			outcome = entities.OutcomeFailed
		}
		entry := &entities.IrrigationLog{
			GardenID:        garden.ID,
			IrrigationTime:  now,
			DurationSeconds: fb.DurationSeconds(),
			Status:          outcome,
			Type:            string(garden.IrrigationMode),
			Notes:           message,
		}
		if err := s.store.CreateIrrigationLog(ctx, entry); err != nil {
			log.Printf("gateway: irrigation log for garden %d not written: %v", garden.ID, err)
		}
	}

	s.notifier.notify(garden.ID)
	log.Printf("gateway: feedback from %s: garden %d pump %s", deviceID, garden.ID, status)
	return nil
}

// HandleConnectReply resolves a liveness probe with the device's own
// answer and records the connectivity flip. On a fresh "on" the gateway
// re-syncs the device clock; reconnecting boards boot with a stale RTC.
func (s *Service) HandleConnectReply(ctx context.Context, deviceID, verdict string) error {
	connected := strings.EqualFold(verdict, "on")

	if !s.liveness.resolve(deviceID, connected) {
		log.Printf("gateway: unsolicited connect reply from %s (%s)", deviceID, verdict)
	}

	if err := s.store.UpsertDeviceConnected(ctx, deviceID, connected, time.Now()); err != nil {
		return fmt.Errorf("persist connectivity for %s: %w", deviceID, err)
	}

	if connected {
		if err := s.commander.SendRealTime(deviceID, time.Now()); err != nil {
			log.Printf("gateway: clock sync for %s failed: %v", deviceID, err)
		}
	}
	return nil
}

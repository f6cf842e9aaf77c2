package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
)

// SyncGardenSchedules re-publishes every enabled schedule of a garden
// to its device, ownership checked.
func (s *Service) SyncGardenSchedules(ctx context.Context, userID, gardenID uint) error {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	return s.syncSchedules(ctx, garden)
}

// syncSchedules pushes the full enabled schedule set to the garden's
// device. Devices hold no stable slot ids: each repeat class is
// addressed by a zero-based index in read order, so the only safe move
// is a complete re-publish. A garden or device that cannot be resolved
// aborts the whole sync; a single malformed row is skipped.
func (s *Service) syncSchedules(ctx context.Context, garden *entities.Garden) error {
	if !garden.HasDevice() {
		return ErrDeviceNotBound
	}
	if _, err := s.store.DeviceByID(ctx, garden.DeviceID); err != nil {
		return fmt.Errorf("device %s for garden %d: %w", garden.DeviceID, garden.ID, err)
	}

	schedules, err := s.store.EnabledSchedules(ctx, garden.ID)
	if err != nil {
		return fmt.Errorf("schedules for garden %d: %w", garden.ID, err)
	}

	// Per-class counters give each slot its device-side index.
	indices := map[entities.RepeatClass]int{}
	sent := 0
	for _, sched := range schedules {
		class := sched.Class()
		index := indices[class]

		slot, ok := scheduleSlot(sched, class)
		if !ok {
			log.Printf("gateway: schedule %d for garden %d malformed, skipped", sched.ID, garden.ID)
			continue
		}
		indices[class] = index + 1

		// one lost slot must not starve the rest of the set
		if err := s.commander.SendScheduleAdd(garden.DeviceID, slot); err != nil {
			log.Printf("gateway: schedule %d (class %s index %d) for garden %d not sent: %v",
				sched.ID, class, index, garden.ID, err)
			continue
		}
		s.metrics.scheduleSent()
		sent++
	}

	log.Printf("gateway: garden %d: %d schedule slots synced to %s", garden.ID, sent, garden.DeviceID)
	return nil
}

// scheduleSlot converts a persisted schedule into the device payload.
// ok is false when the clock or the weekly day cannot be parsed.
func scheduleSlot(sched entities.Schedule, class entities.RepeatClass) (messages.ScheduleAdd, bool) {
	hour, minute, ok := sched.ClockTime()
	if !ok {
		return messages.ScheduleAdd{}, false
	}
	slot := messages.ScheduleAdd{
		Repeat:   string(class),
		Hour:     hour,
		Minute:   minute,
		Second:   0,
		Duration: sched.DurationSeconds,
	}
	if class == entities.RepeatWeekly {
		dow, ok := sched.DayOfWeek()
		if !ok {
			return messages.ScheduleAdd{}, false
		}
		slot.DayOfWeek = &dow
	}
	return slot, true
}

// RemoveDeviceSchedule deletes one slot on the device by its repeat
// class and zero-based index. The caller re-syncs afterwards; indices
// above the removed one shift down on the device.
func (s *Service) RemoveDeviceSchedule(ctx context.Context, userID, gardenID uint, class entities.RepeatClass, index int) error {
	garden, err := s.ownedGarden(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if !garden.HasDevice() {
		return ErrDeviceNotBound
	}
	if index < 0 {
		return fmt.Errorf("schedule index %d out of range", index)
	}
	if err := s.commander.SendScheduleDelete(garden.DeviceID, string(class), index); err != nil {
		return fmt.Errorf("schedule delete for garden %d: %w", gardenID, err)
	}
	return nil
}

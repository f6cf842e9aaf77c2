package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/internal/storage"
)

type publishedMsg struct {
	Topic   string
	Payload string
}

// fakePublisher records every publish and can be told to fail topics by
// prefix.
type fakePublisher struct {
	mu         sync.Mutex
	published  []publishedMsg
	failPrefix string
}

func (p *fakePublisher) Publish(topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPrefix != "" && strings.HasPrefix(topic, p.failPrefix) {
		return fmt.Errorf("publish to %s refused", topic)
	}
	p.published = append(p.published, publishedMsg{Topic: topic, Payload: payload})
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) all() []publishedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMsg, len(p.published))
	copy(out, p.published)
	return out
}

func (p *fakePublisher) byPrefix(prefix string) []publishedMsg {
	var out []publishedMsg
	for _, m := range p.all() {
		if strings.HasPrefix(m.Topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

type recordedReading struct {
	GardenID uint
	DeviceID string
	Reading  messages.Telemetry
}

type fakeReadings struct {
	mu       sync.Mutex
	readings []recordedReading
	err      error
}

func (r *fakeReadings) WriteReading(_ context.Context, gardenID uint, deviceID string, t messages.Telemetry, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.readings = append(r.readings, recordedReading{GardenID: gardenID, DeviceID: deviceID, Reading: t})
	return nil
}

func (r *fakeReadings) all() []recordedReading {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedReading, len(r.readings))
	copy(out, r.readings)
	return out
}

// memStore is an in-memory Store for handler tests; the GORM-backed
// implementation has its own tests against sqlite.
type memStore struct {
	mu        sync.Mutex
	gardens   map[uint]*entities.Garden
	devices   map[string]*entities.Device
	plants    map[uint]*entities.Plant
	runs      []*entities.IrrigationRun
	logs      []*entities.IrrigationLog
	schedules []entities.Schedule
	nextRunID uint
}

func newMemStore() *memStore {
	return &memStore{
		gardens: make(map[uint]*entities.Garden),
		devices: make(map[string]*entities.Device),
		plants:  make(map[uint]*entities.Plant),
	}
}

func (m *memStore) addGarden(g entities.Garden) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.DeviceID == "" {
		g.DeviceID = entities.PlaceholderDeviceID
	}
	if g.IrrigationMode == "" {
		g.IrrigationMode = entities.ModeNone
	}
	if g.PumpStatus == "" {
		g.PumpStatus = entities.PumpIdle
	}
	m.gardens[g.ID] = &g
}

func (m *memStore) addPlant(p entities.Plant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plants[p.ID] = &p
}

func (m *memStore) addSchedule(s entities.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = append(m.schedules, s)
}

func (m *memStore) garden(id uint) entities.Garden {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.gardens[id]
}

func (m *memStore) allLogs() []entities.IrrigationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.IrrigationLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, *l)
	}
	return out
}

func (m *memStore) allRuns() []entities.IrrigationRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.IrrigationRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out
}

func (m *memStore) GardenByID(_ context.Context, id uint) (*entities.Garden, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gardens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) GardenByDeviceID(_ context.Context, deviceID string) (*entities.Garden, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gardens {
		if g.DeviceID == deviceID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) DeviceBoundElsewhere(_ context.Context, deviceID string, gardenID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range m.gardens {
		if g.DeviceID == deviceID && id != gardenID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateGardenMode(_ context.Context, gardenID uint, mode entities.IrrigationMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gardens[gardenID]
	if !ok {
		return storage.ErrNotFound
	}
	g.IrrigationMode = mode
	return nil
}

func (m *memStore) UpdateGardenDevice(_ context.Context, gardenID uint, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gardens[gardenID]
	if !ok {
		return storage.ErrNotFound
	}
	g.DeviceID = deviceID
	return nil
}

func (m *memStore) UpdateGardenPumpStatus(_ context.Context, gardenID uint, upd storage.PumpStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gardens[gardenID]
	if !ok {
		return storage.ErrNotFound
	}
	g.PumpStatus = upd.Status
	g.PumpStatusMessage = upd.Message
	at := upd.At
	g.LastPumpFeedbackAt = &at
	g.LastPumpSuccess = upd.Success
	return nil
}

func (m *memStore) DeviceByID(_ context.Context, deviceID string) (*entities.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) EnsureDevice(_ context.Context, deviceID string) (*entities.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		cp := *d
		return &cp, nil
	}
	d := &entities.Device{DeviceID: deviceID}
	m.devices[deviceID] = d
	cp := *d
	return &cp, nil
}

func (m *memStore) UpsertDeviceTelemetry(_ context.Context, deviceID string, t messages.Telemetry, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		d = &entities.Device{DeviceID: deviceID}
		m.devices[deviceID] = d
	}
	d.Temperature = t.Temperature
	d.AirHumidity = t.AirHumidity
	d.SoilMoisture = t.SoilMoisture
	d.Connected = true
	d.LastUpdated = &at
	return nil
}

func (m *memStore) UpsertDeviceConnected(_ context.Context, deviceID string, connected bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		d = &entities.Device{DeviceID: deviceID}
		m.devices[deviceID] = d
	}
	d.Connected = connected
	d.LastUpdated = &at
	return nil
}

func (m *memStore) PlantByID(_ context.Context, id uint) (*entities.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateIrrigationRun(_ context.Context, gardenID uint, running bool, at time.Time) (*entities.IrrigationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRunID++
	run := &entities.IrrigationRun{ID: m.nextRunID, GardenID: gardenID, Running: running, Timestamp: at}
	m.runs = append(m.runs, run)
	cp := *run
	return &cp, nil
}

func (m *memStore) LatestIrrigationRun(_ context.Context, gardenID uint) (*entities.IrrigationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *entities.IrrigationRun
	for _, r := range m.runs {
		if r.GardenID != gardenID {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) ||
			(r.Timestamp.Equal(latest.Timestamp) && r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) SetIrrigationRunRunning(_ context.Context, runID uint, running bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == runID {
			r.Running = running
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) CreateIrrigationLog(_ context.Context, entry *entities.IrrigationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	cp.ID = uint(len(m.logs) + 1)
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *memStore) EnabledSchedules(_ context.Context, gardenID uint) ([]entities.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Schedule
	for _, s := range m.schedules {
		if s.GardenID == gardenID && s.Enabled {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case (di == nil) != (dj == nil):
			return di == nil
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var _ storage.Store = (*memStore)(nil)

// newTestService wires a service with tight timeouts over the fakes.
func newTestService(store storage.Store, readings storage.ReadingWriter, pub *fakePublisher) *Service {
	return NewService(store, readings, pub, nil, Options{
		FeedbackTimeout: 250 * time.Millisecond,
		FeedbackPoll:    10 * time.Millisecond,
		LivenessTimeout: 50 * time.Millisecond,
	})
}

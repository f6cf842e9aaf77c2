package gateway

import (
	"hash/fnv"
	"sync"
	"time"
)

// ConnStatus is the outcome of a liveness check. A silent device is
// OFF, not an error.
type ConnStatus string

const (
	ConnOn  ConnStatus = "ON"
	ConnOff ConnStatus = "OFF"
)

const livenessShards = 16

type probeOutcome struct {
	status ConnStatus
	err    error
}

type probe struct {
	result chan probeOutcome
	timer  *time.Timer
}

type livenessShard struct {
	mu      sync.Mutex
	pending map[string]*probe
}

// livenessTracker correlates an outbound probe with its inbound reply,
// bounded by a timeout. At most one probe is outstanding per device id;
// a newer probe supersedes the old one. The map is sharded by device id
// so independent ids never contend on one mutex.
type livenessTracker struct {
	shards  [livenessShards]livenessShard
	timeout time.Duration
}

func newLivenessTracker(timeout time.Duration) *livenessTracker {
	t := &livenessTracker{timeout: timeout}
	for i := range t.shards {
		t.shards[i].pending = make(map[string]*probe)
	}
	return t
}

func (t *livenessTracker) shard(deviceID string) *livenessShard {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return &t.shards[h.Sum32()%livenessShards]
}

// register installs a pending probe for deviceID, superseding any
// outstanding one, and arms its expiry timer. Removal and timer
// cancellation always happen under the shard lock, so a timer can never
// fire for an entry that was already replaced or resolved.
func (t *livenessTracker) register(deviceID string) *probe {
	s := t.shard(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pending[deviceID]; ok {
		old.timer.Stop()
		delete(s.pending, deviceID)
		old.result <- probeOutcome{err: ErrProbeSuperseded}
	}

	p := &probe{result: make(chan probeOutcome, 1)}
	p.timer = time.AfterFunc(t.timeout, func() { t.expire(deviceID, p) })
	s.pending[deviceID] = p
	return p
}

// expire resolves a timed-out probe as OFF.
func (t *livenessTracker) expire(deviceID string, p *probe) {
	s := t.shard(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[deviceID] != p {
		return
	}
	delete(s.pending, deviceID)
	p.result <- probeOutcome{status: ConnOff}
}

// resolve delivers a device reply to the pending probe, if any.
func (t *livenessTracker) resolve(deviceID string, connected bool) bool {
	s := t.shard(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[deviceID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, deviceID)
	status := ConnOff
	if connected {
		status = ConnOn
	}
	p.result <- probeOutcome{status: status}
	return true
}

// cancel withdraws a probe that never made it onto the bus.
func (t *livenessTracker) cancel(deviceID string, p *probe) {
	s := t.shard(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[deviceID] == p {
		p.timer.Stop()
		delete(s.pending, deviceID)
	}
}

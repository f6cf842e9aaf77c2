package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/verdra/garden-gateway/internal/model/entities"
	"github.com/verdra/garden-gateway/internal/storage"
	"github.com/verdra/garden-gateway/pkg/mqttbus"
)

// Options tune the gateway timeouts. Zero values take the production
// defaults; tests shrink them.
type Options struct {
	FeedbackTimeout time.Duration // pump start waits this long for feedback
	FeedbackPoll    time.Duration // fallback poll interval during the wait
	LivenessTimeout time.Duration // probe reply deadline
	PlantCacheTTL   time.Duration // plant profiles are immutable enough to cache
}

func (o *Options) defaults() {
	if o.FeedbackTimeout <= 0 {
		o.FeedbackTimeout = 10 * time.Second
	}
	if o.FeedbackPoll <= 0 {
		o.FeedbackPoll = 500 * time.Millisecond
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = 2 * time.Second
	}
	if o.PlantCacheTTL <= 0 {
		o.PlantCacheTTL = 5 * time.Minute
	}
}

// Service is the device command & telemetry gateway core: it owns the
// pump state machine, threshold evaluation, liveness correlation,
// schedule sync and device binding. Message-stream handlers and
// caller-initiated operations run concurrently against the same
// per-garden/per-device rows.
type Service struct {
	store     storage.Store
	readings  storage.ReadingWriter
	commander *Commander
	liveness  *livenessTracker
	notifier  *pumpNotifier
	plants    *gocache.Cache
	metrics   *Metrics

	feedbackTimeout time.Duration
	feedbackPoll    time.Duration
}

func NewService(store storage.Store, readings storage.ReadingWriter, publisher mqttbus.IPublisher, metrics *Metrics, opts Options) *Service {
	opts.defaults()
	return &Service{
		store:           store,
		readings:        readings,
		commander:       NewCommander(publisher, metrics),
		liveness:        newLivenessTracker(opts.LivenessTimeout),
		notifier:        newPumpNotifier(),
		plants:          gocache.New(opts.PlantCacheTTL, 2*opts.PlantCacheTTL),
		metrics:         metrics,
		feedbackTimeout: opts.FeedbackTimeout,
		feedbackPoll:    opts.FeedbackPoll,
	}
}

// Commander exposes the outbound encoder, e.g. for the CRUD layer to
// send unbind notices on garden deletion.
func (s *Service) Commander() *Commander { return s.commander }

// CheckConnection probes a device and waits for its reply or the
// timeout. No reply resolves OFF; only a publish failure before the
// timer matters is an error. A second check for the same device
// supersedes the first.
func (s *Service) CheckConnection(ctx context.Context, deviceID string) (ConnStatus, error) {
	p := s.liveness.register(deviceID)

	if err := s.commander.SendConnectProbe(deviceID); err != nil {
		s.liveness.cancel(deviceID, p)
		s.metrics.probe("publish_error")
		return "", fmt.Errorf("liveness probe for %s: %w", deviceID, err)
	}

	select {
	case out := <-p.result:
		if out.err != nil {
			s.metrics.probe("superseded")
			return "", out.err
		}
		if out.status == ConnOn {
			s.metrics.probe("on")
		} else {
			s.metrics.probe("off")
		}
		return out.status, nil
	case <-ctx.Done():
		s.liveness.cancel(deviceID, p)
		return "", ctx.Err()
	}
}

// plantProfile reads a plant row through the profile cache.
func (s *Service) plantProfile(ctx context.Context, plantID uint) (*entities.Plant, error) {
	key := strconv.FormatUint(uint64(plantID), 10)
	if v, ok := s.plants.Get(key); ok {
		return v.(*entities.Plant), nil
	}
	plant, err := s.store.PlantByID(ctx, plantID)
	if err != nil {
		return nil, err
	}
	s.plants.SetDefault(key, plant)
	return plant, nil
}

package gateway

import (
	"context"
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/pkg/dedup"
)

// Router turns raw bus messages into service calls. It owns the
// cross-cutting inbound concerns: tracing, duplicate suppression and
// channel-family dispatch by the first topic segment.
type Router struct {
	svc    *Service
	trace  *Trace
	dedup  *dedup.Deduper
	parent context.Context
}

func NewRouter(parent context.Context, svc *Service, trace *Trace, deduper *dedup.Deduper) *Router {
	if parent == nil {
		parent = context.Background()
	}
	return &Router{svc: svc, trace: trace, dedup: deduper, parent: parent}
}

// Handle is the consumer callback: it dispatches one message and never
// lets a malformed payload take the subscription down.
func (r *Router) Handle(topic string, message mqtt.Message) error {
	return r.Dispatch(topic, message.Payload())
}

// Dispatch routes one raw message to its family handler.
func (r *Router) Dispatch(topic string, payload []byte) error {
	if r.trace != nil {
		r.trace.Append(topic, payload)
	}
	if r.dedup != nil && !r.dedup.ShouldProcess(topic+"#"+dedup.Hash(payload)) {
		r.svc.metrics.dropped("duplicate")
		return nil
	}

	parts := splitTopic(topic)
	ctx := r.parent

	switch {
	case len(parts) == 2 && parts[0] == familyConditions:
		r.svc.metrics.message(familyConditions)
		var t messages.Telemetry
		if err := json.Unmarshal(payload, &t); err != nil {
			r.drop(topic, "telemetry_malformed", err)
			return nil
		}
		return r.svc.HandleTelemetry(ctx, parts[1], t)

	case len(parts) == 2 && parts[0] == familyLogs:
		r.svc.metrics.message(familyLogs)
		var event messages.DeviceLogEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			r.drop(topic, "log_malformed", err)
			return nil
		}
		return r.svc.HandleDeviceLog(ctx, parts[1], event)

	case len(parts) == 4 && parts[0] == familyIot && parts[1] == "control" && parts[2] == "feedback":
		r.svc.metrics.message(familyIot)
		var fb messages.PumpFeedback
		if err := json.Unmarshal(payload, &fb); err != nil {
			// bare-string feedback like "on" is normal for old firmware
			fb = messages.PumpFeedback{Raw: string(payload)}
		}
		return r.svc.HandlePumpFeedback(ctx, parts[3], fb)

	case len(parts) == 4 && parts[0] == familyConnect && parts[2] == "response":
		r.svc.metrics.message(familyConnect)
		return r.svc.HandleConnectReply(ctx, parts[1], parts[3])
	}

	r.svc.metrics.dropped("unknown_topic")
	log.Printf("gateway: message on unknown topic %s dropped", topic)
	return nil
}

func (r *Router) drop(topic, reason string, err error) {
	r.svc.metrics.dropped(reason)
	log.Printf("gateway: message on %s dropped (%s): %v", topic, reason, err)
}

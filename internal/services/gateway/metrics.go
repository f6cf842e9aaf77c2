package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what flows through the gateway. A nil *Metrics is
// valid and counts nothing, which keeps tests quiet.
type Metrics struct {
	MessagesTotal *prometheus.CounterVec
	DroppedTotal  *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
	AlertsTotal   *prometheus.CounterVec
	PumpTimeouts  prometheus.Counter
	ProbeResults  *prometheus.CounterVec
	SchedulesSent prometheus.Counter
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_messages_total",
			Help: "Inbound bus messages accepted, by channel family.",
		}, []string{"family"}),
		DroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_dropped_messages_total",
			Help: "Inbound bus messages dropped, by reason.",
		}, []string{"reason"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_publish_errors_total",
			Help: "Failed outbound publishes, by command.",
		}, []string{"command"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_threshold_alerts_total",
			Help: "Threshold alerts emitted, by channel.",
		}, []string{"channel"}),
		PumpTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "gateway_pump_feedback_timeouts_total",
			Help: "Pump starts that saw no device feedback in time.",
		}),
		ProbeResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_liveness_probes_total",
			Help: "Liveness probe outcomes.",
		}, []string{"result"}),
		SchedulesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "gateway_schedule_slots_sent_total",
			Help: "Schedule add commands published to devices.",
		}),
	}
}

func (m *Metrics) message(family string) {
	if m != nil {
		m.MessagesTotal.WithLabelValues(family).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.DroppedTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) publishError(command string) {
	if m != nil {
		m.PublishErrors.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) alert(channel string) {
	if m != nil {
		m.AlertsTotal.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) pumpTimeout() {
	if m != nil {
		m.PumpTimeouts.Inc()
	}
}

func (m *Metrics) probe(result string) {
	if m != nil {
		m.ProbeResults.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) scheduleSent() {
	if m != nil {
		m.SchedulesSent.Inc()
	}
}

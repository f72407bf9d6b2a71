package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// StorefrontMetrics records order submissions, notifier latency and widget transitions.
type StorefrontMetrics struct {
	submissions *prometheus.CounterVec
	notify      *prometheus.HistogramVec
	widget      *prometheus.CounterVec
	sessions    prometheus.Gauge
	captures    *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viylo_order_submissions_total",
		Help: "Order submissions by result.",
	}, []string{"result"})
	notify := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "viylo_order_notify_duration_seconds",
		Help:    "Duration of notifier calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver"})
	widget := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viylo_widget_transitions_total",
		Help: "Payment widget state transitions.",
	}, []string{"from", "to"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viylo_sessions_active",
		Help: "Storefront sessions held in memory.",
	})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viylo_payment_captures_total",
		Help: "Server-side payment captures by result.",
	}, []string{"result"})
	reg.MustRegister(submissions, notify, widget, sessions, captures)
	return &StorefrontMetrics{
		submissions: submissions,
		notify:      notify,
		widget:      widget,
		sessions:    sessions,
		captures:    captures,
	}
}

// IncSubmission counts a submission outcome.
func (m *StorefrontMetrics) IncSubmission(result string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveNotify records how long the named notifier took.
func (m *StorefrontMetrics) ObserveNotify(driver string, duration time.Duration) {
	if m == nil || m.notify == nil {
		return
	}
	m.notify.WithLabelValues(normalizeLabel(driver)).Observe(duration.Seconds())
}

func (m *StorefrontMetrics) WidgetTransition(from, to string) {
	if m == nil || m.widget == nil {
		return
	}
	m.widget.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *StorefrontMetrics) IncCapture(result string) {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetSessions reports the live session count.
func (m *StorefrontMetrics) SetSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

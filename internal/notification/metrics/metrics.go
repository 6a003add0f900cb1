package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source labels why a notification was created.
const (
	SourceApproval  = "approval"
	SourceBroadcast = "broadcast"
)

// Metrics tracks fan-out outcomes per recipient and per dispatch.
type Metrics struct {
	Created          *prometheus.CounterVec
	Failed           *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Recipients       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doccontrol_notifications_created_total",
			Help: "Notification rows created, by source",
		}, []string{"source"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doccontrol_notifications_failed_total",
			Help: "Recipients whose notification could not be created, by source",
		}, []string{"source"}),
		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doccontrol_notification_dispatch_duration_seconds",
			Help:    "Wall time of one fan-out across all recipients",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),
		Recipients: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "doccontrol_notification_recipients",
			Help:    "Recipients resolved per dispatch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) IncrementCreated(source string) {
	m.Created.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementFailed(source string) {
	m.Failed.WithLabelValues(source).Inc()
}

// ObserveDispatch records the duration and audience of a fan-out.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveDispatch(source string, start time.Time, recipients int) {
	m.DispatchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	m.Recipients.Observe(float64(recipients))
}

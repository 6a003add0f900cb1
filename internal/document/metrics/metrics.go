package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the revision ledger: submissions, transitions and how many
// notifications each approval produced.
type Metrics struct {
	DocumentsSubmitted prometheus.Counter
	RevisionsAppended  prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionDuration prometheus.Histogram
	ApprovalsNotified  prometheus.Counter
	ApprovalsPartial   prometheus.Counter
	DocumentsPurged    prometheus.Counter
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_documents_submitted_total",
			Help: "Total number of documents created",
		}),
		RevisionsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_revisions_appended_total",
			Help: "Total number of revisions appended to existing documents",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doccontrol_document_transitions_total",
			Help: "Committed status transitions by origin and target status",
		}, []string{"from", "to"}),
		TransitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "doccontrol_document_transition_duration_seconds",
			Help:    "Duration of TransitionStatus including dispatch",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ApprovalsNotified: factory.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_approval_notifications_total",
			Help: "Notifications created as a result of approvals",
		}),
		ApprovalsPartial: factory.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_approval_dispatch_partial_total",
			Help: "Approvals whose dispatch did not reach every recipient",
		}),
		DocumentsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_documents_purged_total",
			Help: "Total number of documents irreversibly removed",
		}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	m.DocumentsSubmitted.Inc()
}

func (m *Metrics) IncrementAppended() {
	m.RevisionsAppended.Inc()
}

func (m *Metrics) IncrementPurged() {
	m.DocumentsPurged.Inc()
}

// RecordTransition counts a committed transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordDispatch counts what an approval produced.
func (m *Metrics) RecordDispatch(sent int, partial bool) {
	m.ApprovalsNotified.Add(float64(sent))
	if partial {
		m.ApprovalsPartial.Inc()
	}
}

// ObserveTransition records the duration of a TransitionStatus call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for IngestTotal.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Ingest holds the collectors for the ingest path.
type Ingest struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	notify   *prometheus.CounterVec
}

// NewIngest registers the ingest collectors on reg
func NewIngest(reg prometheus.Registerer) *Ingest {
	factory := promauto.With(reg)
	return &Ingest{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sms_ledger",
			Name:      "ingest_total",
			Help:      "Inbound SMS events by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sms_ledger",
			Name:      "record_duration_seconds",
			Help:      "Time spent recording an event in the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		notify: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sms_ledger",
			Name:      "notify_total",
			Help:      "Recorded-event notifications by result.",
		}, []string{"result"}),
	}
}

func (m *Ingest) Observe(source, outcome string) {
	m.total.WithLabelValues(source, outcome).Inc()
}

func (m *Ingest) ObserveDuration(source string, d time.Duration) {
	m.duration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Ingest) ObserveNotify(err error) {
	if err != nil {
		m.notify.WithLabelValues("error").Inc()
		return
	}
	m.notify.WithLabelValues("ok").Inc()
}

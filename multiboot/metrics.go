package multiboot

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a session updates.
// A nil *Metrics records nothing.
type Metrics struct {
	transfers     *prometheus.CounterVec
	retries       *prometheus.CounterVec
	wordsSent     prometheus.Counter
	phaseDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg (prometheus.DefaultRegisterer if nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gbalink",
			Name:      "transfers_total",
			Help:      "Multiboot transfers by outcome.",
		}, []string{"outcome"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gbalink",
			Name:      "retries_total",
			Help:      "Retried exchanges by phase.",
		}, []string{"phase"}),
		wordsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gbalink",
			Name:      "words_sent_total",
			Help:      "Words written to the link.",
		}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gbalink",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each protocol phase.",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
	}
}

func (m *Metrics) transfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) retry(phase State) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(phase.String()).Inc()
}

func (m *Metrics) word() {
	if m == nil {
		return
	}
	m.wordsSent.Inc()
}

func (m *Metrics) phase(phase State, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase.String()).Observe(d.Seconds())
}

// Package metrics holds the Prometheus instruments for availability
// resolution, rule mutations and bookings. A nil *Metrics is a no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	resolutions     *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	bookings        *prometheus.CounterVec
	resolveDuration prometheus.Histogram
}

// New registers the instruments with reg, or with the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "availability",
			Name:      "resolutions_total",
			Help:      "Availability resolutions by resulting day mode",
		}, []string{"mode"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "availability",
			Name:      "rule_mutations_total",
			Help:      "Schedule rule mutations by operation and outcome",
		}, []string{"operation", "status"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "availability",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"status"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "availability",
			Name:      "resolve_duration_seconds",
			Help:      "Time to resolve one doctor-day including data loading",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.mutations, m.bookings, m.resolveDuration)
	return m
}

func (m *Metrics) ObserveResolution(mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(mode).Inc()
	m.resolveDuration.Observe(elapsed.Seconds())
}

// ObserveMutation counts a rule change; err decides the status label.
func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.mutations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(status).Inc()
}

// Handler serves the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

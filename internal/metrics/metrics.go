// Package metrics exposes Prometheus collectors for capture sessions,
// identification and connectivity. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "breedid"

// Submission outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeOffline    = "offline"
	OutcomeFailed     = "failed"
	OutcomeStale      = "stale"
	OutcomeInProgress = "in_progress"
)

type Metrics struct {
	registry *prometheus.Registry

	submissionsTotal  *prometheus.CounterVec
	resultsTotal      *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	online            prometheus.Gauge
	streamsOpen       prometheus.Gauge
	sessionsActive    prometheus.Gauge
	sessionsExpired   prometheus.Counter
}

// New registers all collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Identification submissions by outcome",
			},
			[]string{"outcome"},
		),
		resultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Identification results by confidence tier",
			},
			[]string{"tier"},
		),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_seconds",
				Help:      "Duration of inference calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 10, 30},
			},
			[]string{"status"}, // status: success, error
		),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connectivity_online",
			Help:      "1 when the network is reachable, 0 otherwise",
		}),
		streamsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "camera_streams_open",
			Help:      "Number of camera streams currently held",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_sessions_active",
			Help:      "Number of capture sessions in the registry",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_expired_total",
			Help:      "Capture sessions released by the idle sweeper",
		}),
	}

	m.registry.MustRegister(
		m.submissionsTotal,
		m.resultsTotal,
		m.inferenceDuration,
		m.online,
		m.streamsOpen,
		m.sessionsActive,
		m.sessionsExpired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Result(tier string) {
	if m == nil {
		return
	}
	m.resultsTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveInference(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.inferenceDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpen.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streamsOpen.Dec()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) SessionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(n))
}

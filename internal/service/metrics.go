// Package service implements the supervisor of spec §4.E: a Service is a
// named, long-running unit with update() and interval; the Supervisor drives
// its state machine and a Registry manages the whole fleet.
package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for supervised services, adapted
// from internal/jobs' job tracker: a run/failure counter and duration
// histogram per service, plus a state gauge (spec §4.E states) that the
// Supervisor updates on every transition.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	state    *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the service metrics against registerer, or the
// default Prometheus registerer if nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single update() invocation.
type Tracker struct {
	metrics *Metrics
	service string
	start   time.Time
}

// Track starts a Tracker for service.
func (m *Metrics) Track(service string) *Tracker {
	if m == nil {
		return &Tracker{service: service, start: time.Now()}
	}
	return &Tracker{metrics: m, service: service, start: time.Now()}
}

// End finalizes the tracker and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.service).Inc()
	}
	t.metrics.runs.WithLabelValues(t.service, status).Inc()
	t.metrics.duration.WithLabelValues(t.service).Observe(time.Since(t.start).Seconds())
	return err
}

// SetState records service's current State in the state gauge: 1 on the
// current state's label and 0 on every other state's, so a dashboard can
// chart state transitions over time.
func (m *Metrics) SetState(service string, s State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(service, s.String()).Set(1)
	for _, other := range []State{Stopped, Running, Paused, Failed} {
		if other != s {
			m.state.WithLabelValues(service, other.String()).Set(0)
		}
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coreframe_service_runs_total",
		Help: "Total service update() executions partitioned by service name and status.",
	}, []string{"service", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coreframe_service_failures_total",
		Help: "Total failures observed for supervised services.",
	}, []string{"service"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coreframe_service_update_duration_seconds",
		Help:    "Duration in seconds of a service's update() call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coreframe_service_state",
		Help: "Current state of a supervised service (1 for the active state, 0 otherwise).",
	}, []string{"service", "state"})
	registerer.MustRegister(runs, failures, duration, state)
	return &Metrics{runs: runs, failures: failures, duration: duration, state: state}
}

package obs

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Simplici0/dealplanner/internal/pricing"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP metrics collectors.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	mustRegisterCollector(reg, m.ReqTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.ReqTotal = v
		}
	})
	mustRegisterCollector(reg, m.ReqDur, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.ReqDur = v
		}
	})
	mustRegisterCollector(reg, m.InFlight, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Gauge); ok {
			m.InFlight = v
		}
	})
	return m
}

// PlannerMetrics records planner activity. It satisfies planner.Recorder.
type PlannerMetrics struct {
	Mutations *prometheus.CounterVec
	StageRuns *prometheus.CounterVec
	Bundles   prometheus.Gauge
}

// NewPlannerMetrics registers and returns the planner collectors.
func NewPlannerMetrics(namespace string, reg prometheus.Registerer) *PlannerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PlannerMetrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Planner mutations by operation.",
		}, []string{"op"}),
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Recomputation stage executions by stage.",
		}, []string{"stage"}),
		Bundles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundles",
			Help:      "Number of bundles in the current deal.",
		}),
	}
	mustRegisterCollector(reg, m.Mutations, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Mutations = v
		}
	})
	mustRegisterCollector(reg, m.StageRuns, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.StageRuns = v
		}
	})
	mustRegisterCollector(reg, m.Bundles, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Gauge); ok {
			m.Bundles = v
		}
	})
	return m
}

func (m *PlannerMetrics) ObserveMutation(op string) {
	m.Mutations.WithLabelValues(op).Inc()
}

func (m *PlannerMetrics) ObserveStages(stages []pricing.Stage) {
	for _, st := range stages {
		m.StageRuns.WithLabelValues(st.String()).Inc()
	}
}

func (m *PlannerMetrics) SetBundles(n int) {
	m.Bundles.Set(float64(n))
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	BackendErrors prometheus.Counter
	CircuitOpen   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_ratelimit_decisions_total",
			Help: "Rate limit decisions by result and deciding backend",
		}, []string{"result", "backend"}),
		BackendErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_ratelimit_backend_errors_total",
			Help: "Shared rate limit backend failures",
		}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "academy_ratelimit_circuit_open",
			Help: "1 while the shared backend circuit is open",
		}),
	}
}

func (m *Metrics) ObserveDecision(allowed bool, backend string) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.Decisions.WithLabelValues(result, backend).Inc()
}

func (m *Metrics) IncBackendError() {
	if m == nil {
		return
	}
	m.BackendErrors.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

package contract

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts handler invocations. A nil *Metrics records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	polls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil. Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcontract_invocations_total",
			Help: "Handler invocations by action and returned status.",
		}, []string{"action", "status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcontract_polls_total",
			Help: "Re-invocations made while a handler reported IN_PROGRESS.",
		}, []string{"action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rcontract_operation_seconds",
			Help:    "Time from first invocation to terminal status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.invocations, err = register(reg, m.invocations); err != nil {
		return nil, err
	}
	if m.polls, err = register(reg, m.polls); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) invocation(action Action, status string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(string(action), status).Inc()
}

func (m *Metrics) poll(action Action) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) operation(action Action, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(action)).Observe(d.Seconds())
}

package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AccessMetrics counts authorization decisions by outcome.
type AccessMetrics struct {
	allowed prometheus.Counter
	denied  prometheus.Counter
	errors  prometheus.Counter
}

// NewAccessMetrics registers decision counters with the provided registerer,
// falling back to the default registerer when nil.
func NewAccessMetrics(reg prometheus.Registerer) (*AccessMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Subsystem: "access",
		Name:      "decisions_total",
		Help:      "Total number of permission checks partitioned by outcome.",
	}, []string{"outcome"})

	if err := reg.Register(decisions); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				decisions = existing
			} else {
				return nil, fmt.Errorf("existing decisions collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register decisions collector: %w", err)
		}
	}

	return &AccessMetrics{
		allowed: decisions.WithLabelValues("allowed"),
		denied:  decisions.WithLabelValues("denied"),
		errors:  decisions.WithLabelValues("error"),
	}, nil
}

// IncAllowed records an allowed decision.
func (m *AccessMetrics) IncAllowed() { m.allowed.Inc() }

// IncDenied records a denied decision.
func (m *AccessMetrics) IncDenied() { m.denied.Inc() }

// IncError records a check that failed closed on a store error.
func (m *AccessMetrics) IncError() { m.errors.Inc() }

package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsOptions configures the saga and downstream collectors.
type MetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Metrics groups the counters emitted by the registration saga and the service clients.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	Compensations *prometheus.CounterVec
}

// NewMetrics constructs the collectors and registers them with the provided registerer.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_outcomes_total",
		Help:      "Registration attempts partitioned by outcome and the stage that decided it.",
	}, []string{"outcome", "stage"})
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downstream_fallbacks_total",
		Help:      "Downstream calls answered by a fallback, partitioned by service and operation.",
	}, []string{"service", "operation"})
	if err != nil {
		return nil, err
	}

	retries, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downstream_retries_total",
		Help:      "Retried downstream attempts partitioned by service.",
	}, []string{"service"})
	if err != nil {
		return nil, err
	}

	compensations, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compensation_actions_total",
		Help:      "Compensating actions partitioned by resource and result.",
	}, []string{"resource", "result"})
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Outcomes:      outcomes,
		Fallbacks:     fallbacks,
		Retries:       retries,
		Compensations: compensations,
	}, nil
}

// ObserveOutcome counts a finished registration attempt.
func (m *Metrics) ObserveOutcome(outcome, stage string) {
	if m == nil || m.Outcomes == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome, stage).Inc()
}

// ObserveFallback counts a downstream call that was answered by a fallback.
func (m *Metrics) ObserveFallback(service, operation string) {
	if m == nil || m.Fallbacks == nil {
		return
	}
	m.Fallbacks.WithLabelValues(service, operation).Inc()
}

// ObserveRetry counts a retried downstream attempt.
func (m *Metrics) ObserveRetry(service string) {
	if m == nil || m.Retries == nil {
		return
	}
	m.Retries.WithLabelValues(service).Inc()
}

// ObserveCompensation counts a compensating action.
func (m *Metrics) ObserveCompensation(resource, result string) {
	if m == nil || m.Compensations == nil {
		return
	}
	m.Compensations.WithLabelValues(resource, result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

package actuator

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsNamespace = "csa"

// MetricsEmitter records adaptation metrics in a private registry. A nil
// emitter discards everything.
type MetricsEmitter struct {
	registry        *prometheus.Registry
	adaptations     *prometheus.CounterVec
	desiredReplicas *prometheus.GaugeVec
	qualityTier     *prometheus.GaugeVec
	cpuLimit        *prometheus.GaugeVec
}

// NewMetricsEmitter creates an emitter with its own registry.
func NewMetricsEmitter() *MetricsEmitter {
	e := &MetricsEmitter{
		registry: prometheus.NewRegistry(),
		adaptations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "adaptations_total",
			Help:      "Adaptation cycles by strategy and result.",
		}, []string{"namespace", "deployment", "strategy", "result"}),
		desiredReplicas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "desired_replicas",
			Help:      "Replica count requested by the last applied adaptation.",
		}, []string{"namespace", "deployment"}),
		qualityTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "quality_tier_index",
			Help:      "Position of the active quality tier, 0 being the lowest.",
		}, []string{"namespace", "deployment", "tag"}),
		cpuLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cpu_limit_millicores",
			Help:      "CPU limit set by the last in-place resize.",
		}, []string{"namespace", "deployment", "pod"}),
	}
	e.registry.MustRegister(e.adaptations, e.desiredReplicas, e.qualityTier, e.cpuLimit)
	return e
}

// Registry returns the registry holding the emitted metrics.
func (e *MetricsEmitter) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// EmitOutcome counts one adaptation cycle.
func (e *MetricsEmitter) EmitOutcome(namespace, deployment, strategy string, outcome PatchOutcome) {
	if e == nil {
		return
	}
	e.adaptations.WithLabelValues(namespace, deployment, strategy, string(outcome.Result)).Inc()
}

// EmitDesiredReplicas records the replica count of an applied patch.
func (e *MetricsEmitter) EmitDesiredReplicas(namespace, deployment string, replicas int32) {
	if e == nil {
		return
	}
	e.desiredReplicas.WithLabelValues(namespace, deployment).Set(float64(replicas))
}

// EmitQualityTier records the active tier.
func (e *MetricsEmitter) EmitQualityTier(namespace, deployment, tag string, index int) {
	if e == nil {
		return
	}
	e.qualityTier.WithLabelValues(namespace, deployment, tag).Set(float64(index))
}

// EmitCPULimit records the CPU limit of a resized pod.
func (e *MetricsEmitter) EmitCPULimit(namespace, deployment, pod string, millicores int64) {
	if e == nil {
		return
	}
	e.cpuLimit.WithLabelValues(namespace, deployment, pod).Set(float64(millicores))
}

// Push sends the registry to the Pushgateway at url, grouped by workload.
func (e *MetricsEmitter) Push(ctx context.Context, url, namespace, deployment string) error {
	if e == nil || url == "" {
		return nil
	}
	err := push.New(url, "csa_adapter").
		Gatherer(e.registry).
		Grouping("namespace", namespace).
		Grouping("deployment", deployment).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

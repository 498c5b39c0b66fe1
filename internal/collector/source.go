package collector

import (
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	"k8s.io/apimachinery/pkg/api/resource"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
)

// DefaultSources returns every built-in source, external first.
func DefaultSources() []MetricSource {
	return []MetricSource{ExternalSource{}, ObjectSource{}, PodsSource{}, ResourceSource{}}
}

// ExternalSource reads External metrics.
type ExternalSource struct{}

func (ExternalSource) Name() string { return string(autoscalingv2.ExternalMetricSourceType) }

func (s ExternalSource) Extract(m csav1.KubernetesMetric) (Reading, bool) {
	if m.Spec.External == nil || m.External == nil {
		return Reading{}, false
	}
	return pair(s.Name(), m.Spec.External.Metric.Name, m.Spec.External.Target, m.External.Current)
}

// ObjectSource reads Object metrics.
type ObjectSource struct{}

func (ObjectSource) Name() string { return string(autoscalingv2.ObjectMetricSourceType) }

func (s ObjectSource) Extract(m csav1.KubernetesMetric) (Reading, bool) {
	if m.Spec.Object == nil || m.Object == nil {
		return Reading{}, false
	}
	return pair(s.Name(), m.Spec.Object.Metric.Name, m.Spec.Object.Target, m.Object.Current)
}

// PodsSource reads Pods metrics.
type PodsSource struct{}

func (PodsSource) Name() string { return string(autoscalingv2.PodsMetricSourceType) }

func (s PodsSource) Extract(m csav1.KubernetesMetric) (Reading, bool) {
	if m.Spec.Pods == nil || m.Pods == nil {
		return Reading{}, false
	}
	return pair(s.Name(), m.Spec.Pods.Metric.Name, m.Spec.Pods.Target, m.Pods.Current)
}

// ResourceSource reads Resource metrics. Utilization targets are read as plain
// percentages.
type ResourceSource struct{}

func (ResourceSource) Name() string { return string(autoscalingv2.ResourceMetricSourceType) }

func (s ResourceSource) Extract(m csav1.KubernetesMetric) (Reading, bool) {
	if m.Spec.Resource == nil || m.Resource == nil {
		return Reading{}, false
	}
	return pair(s.Name(), string(m.Spec.Resource.Name), m.Spec.Resource.Target, m.Resource.Current)
}

// pair matches a target with the current value of the same kind: Value, then
// AverageValue, then AverageUtilization.
func pair(source, metric string, target autoscalingv2.MetricTarget, current autoscalingv2.MetricValueStatus) (Reading, bool) {
	r := Reading{Source: source, Metric: metric}
	switch {
	case target.Value != nil && current.Value != nil:
		r.Target, r.Current = *target.Value, *current.Value
	case target.AverageValue != nil && current.AverageValue != nil:
		r.Target, r.Current = *target.AverageValue, *current.AverageValue
	case target.AverageUtilization != nil && current.AverageUtilization != nil:
		r.Target = *resource.NewQuantity(int64(*target.AverageUtilization), resource.DecimalSI)
		r.Current = *resource.NewQuantity(int64(*current.AverageUtilization), resource.DecimalSI)
	default:
		return Reading{}, false
	}
	return r, true
}

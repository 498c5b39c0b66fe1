package collector

import (
	"k8s.io/apimachinery/pkg/api/resource"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
)

// Reading is a current/target pair extracted from one Kubernetes metric.
type Reading struct {
	// Source names the MetricSource that produced the reading.
	Source string
	// Metric is the metric name when the source has one.
	Metric  string
	Current resource.Quantity
	Target  resource.Quantity
}

// MetricSource extracts readings from one type of Kubernetes metric.
type MetricSource interface {
	// Name returns the metric source type handled, e.g. "External".
	Name() string

	// Extract returns the reading of m and whether m was of this source's
	// type with both a target and a current value.
	Extract(m csav1.KubernetesMetric) (Reading, bool)
}

package collector

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/logging"
	"github.com/custom-self-adapter/quality-adapter/internal/quantity"
)

// Collector builds metrics documents from Kubernetes metric values.
type Collector struct {
	sources []MetricSource
}

// NewCollector returns a Collector trying sources in order, or DefaultSources
// when none are given.
func NewCollector(sources ...MetricSource) *Collector {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &Collector{sources: sources}
}

// Collect returns the metrics document for req. The current replica count is
// the one of the resource snapshot, or the one reported with the metric when
// the request has no resource.
func (c *Collector) Collect(ctx context.Context, req *csav1.HookRequest) (*csav1.MetricsDocument, error) {
	logger := ctrl.LoggerFrom(ctx)

	if len(req.KubernetesMetrics) == 0 {
		return nil, fmt.Errorf("%w: no kubernetes metrics", csav1.ErrInvalidInput)
	}

	for _, m := range req.KubernetesMetrics {
		for _, source := range c.sources {
			reading, ok := source.Extract(m)
			if !ok {
				continue
			}
			if reading.Target.Sign() <= 0 {
				return nil, fmt.Errorf("%w: %s metric %q has a non-positive target %s",
					csav1.ErrInvalidInput, reading.Source, reading.Metric, reading.Target.String())
			}

			replicas := m.CurrentReplicas
			if req.Resource != nil && req.Resource.Spec.Replicas != nil {
				replicas = *req.Resource.Spec.Replicas
			}
			logger.V(logging.DEBUG).Info("Read metric",
				"source", reading.Source, "metric", reading.Metric,
				"current", reading.Current.String(), "target", reading.Target.String(),
				"replicas", replicas)

			return &csav1.MetricsDocument{
				CurrentReplicas: ptr.To(replicas),
				CurrentValue:    milli(reading.Current),
				TargetValue:     milli(reading.Target),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: none of %d kubernetes metrics has a readable target and current value",
		csav1.ErrInvalidInput, len(req.KubernetesMetrics))
}

func milli(q resource.Quantity) quantity.Value {
	return quantity.StringValue(fmt.Sprintf("%dm", q.MilliValue()))
}

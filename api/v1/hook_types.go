package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"

	"github.com/custom-self-adapter/quality-adapter/internal/quantity"
)

// Strategy names carried by an Evaluation.
const (
	StrategyAdaptReplicas = "adapt_replicas"
	StrategyAdaptTag      = "adapt_tag"
	StrategyAdaptCPU      = "adapt_cpu"
	StrategyHold          = "hold"
)

// Results reported by an Outcome that did not apply a change.
const (
	ResultSkip  = "skip"
	ResultError = "error"
)

// CPU step directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrInvalidInput is returned for hook documents that cannot be decoded or
// lack required fields.
var ErrInvalidInput = errors.New("invalid input")

// HookRequest is the single JSON document read from stdin by every hook.
type HookRequest struct {
	// Metrics is the output of the metric hook, one entry per gathered resource.
	Metrics []MetricSample `json:"metrics,omitempty"`

	// Resource is the snapshot of the managed Deployment taken by the framework.
	Resource *appsv1.Deployment `json:"resource,omitempty"`

	// Evaluation is the decision produced by the evaluate hook.
	Evaluation *Evaluation `json:"evaluation,omitempty"`

	// KubernetesMetrics carries the Kubernetes metric values given to the metric hook.
	KubernetesMetrics []KubernetesMetric `json:"kubernetesMetrics,omitempty"`

	// RunType is "scaler" or "api" depending on how the framework was triggered.
	RunType string `json:"runType,omitempty"`
}

// MetricSample is a metric value as reported by the framework, Value being the
// verbatim stdout of the metric hook.
type MetricSample struct {
	Resource string `json:"resource,omitempty"`
	Value    string `json:"value"`
}

// KubernetesMetric is a metric spec together with its observed status.
type KubernetesMetric struct {
	CurrentReplicas int32                               `json:"current_replicas"`
	Spec            autoscalingv2.MetricSpec            `json:"spec"`
	External        *autoscalingv2.ExternalMetricStatus `json:"external,omitempty"`
	Object          *autoscalingv2.ObjectMetricStatus   `json:"object,omitempty"`
	Pods            *autoscalingv2.PodsMetricStatus     `json:"pods,omitempty"`
	Resource        *autoscalingv2.ResourceMetricStatus `json:"resource,omitempty"`
}

// MetricsDocument is the payload of a MetricSample.
type MetricsDocument struct {
	CurrentReplicas *int32         `json:"current_replicas,omitempty"`
	CurrentValue    quantity.Value `json:"current_value"`
	TargetValue     quantity.Value `json:"target_value"`

	// MinReplicas and MaxReplicas override the configured bounds when present.
	MinReplicas *int32 `json:"min_replicas,omitempty"`
	MaxReplicas *int32 `json:"max_replicas,omitempty"`

	// Legacy latency keys produced by older metric hooks.
	CurrentLatency *quantity.Value `json:"current_latency,omitempty"`
	TargetLatency  *quantity.Value `json:"target_latency,omitempty"`
}

// Current returns the observed value, falling back to the legacy key.
func (m *MetricsDocument) Current() quantity.Value {
	if !m.CurrentValue.IsSet() && m.CurrentLatency != nil {
		return *m.CurrentLatency
	}
	return m.CurrentValue
}

// Target returns the target value, falling back to the legacy key.
func (m *MetricsDocument) Target() quantity.Value {
	if !m.TargetValue.IsSet() && m.TargetLatency != nil {
		return *m.TargetLatency
	}
	return m.TargetValue
}

// ParseMetricsDocument decodes the value of the first metric sample.
func ParseMetricsDocument(samples []MetricSample) (*MetricsDocument, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no metric samples", ErrInvalidInput)
	}
	doc := &MetricsDocument{}
	if err := json.Unmarshal([]byte(samples[0].Value), doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode metric value of %q: %v", ErrInvalidInput, samples[0].Resource, err)
	}
	return doc, nil
}

// Evaluation is the decision emitted by the evaluate hook and handed back to
// the adapt hook.
type Evaluation struct {
	Strategy   string          `json:"strategy"`
	Parameters json.RawMessage `json:"parameters"`
}

// ReplicaParameters are the parameters of adapt_replicas.
type ReplicaParameters struct {
	Replicas *int32 `json:"replicas"`
}

// TagParameters are the parameters of adapt_tag.
type TagParameters struct {
	TagUp *bool `json:"tag_up"`
}

// CPUParameters are the parameters of adapt_cpu. CPU is the fraction by which
// the limit moves.
type CPUParameters struct {
	Direction string   `json:"direction"`
	CPU       *float64 `json:"cpu,omitempty"`
}

// NewEvaluation builds an Evaluation with the given parameters.
func NewEvaluation(strategy string, params any) (Evaluation, error) {
	if params == nil {
		return Evaluation{Strategy: strategy, Parameters: json.RawMessage("{}")}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Strategy: strategy, Parameters: raw}, nil
}

// ReplicasEvaluation asks the adapt hook to set the replica count.
func ReplicasEvaluation(replicas int32) Evaluation {
	e, _ := NewEvaluation(StrategyAdaptReplicas, ReplicaParameters{Replicas: &replicas})
	return e
}

// TagEvaluation asks the adapt hook to step the quality tier.
func TagEvaluation(up bool) Evaluation {
	e, _ := NewEvaluation(StrategyAdaptTag, TagParameters{TagUp: &up})
	return e
}

// HoldEvaluation leaves the workload untouched.
func HoldEvaluation() Evaluation {
	e, _ := NewEvaluation(StrategyHold, nil)
	return e
}

// DecodeParameters decodes the parameters into out. Absent parameters decode
// as an empty object.
func (e *Evaluation) DecodeParameters(out any) error {
	raw := bytes.TrimSpace(e.Parameters)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: parameters for strategy %q: %v", ErrInvalidInput, e.Strategy, err)
	}
	return nil
}

// Outcome is the single JSON document written to stdout by the adapt hook.
type Outcome struct {
	Result   string `json:"result,omitempty"`
	Replicas *int32 `json:"replicas,omitempty"`
	Tag      string `json:"tag,omitempty"`
	CPULimit string `json:"cpu_limit,omitempty"`
	Pod      string `json:"pod,omitempty"`
}

// SkipOutcome reports that the cycle was skipped without side effects.
func SkipOutcome() Outcome {
	return Outcome{Result: ResultSkip}
}

// ErrorOutcome reports that the cycle failed.
func ErrorOutcome() Outcome {
	return Outcome{Result: ResultError}
}

// Skipped reports whether the outcome is a skip.
func (o Outcome) Skipped() bool {
	return o.Result == ResultSkip
}

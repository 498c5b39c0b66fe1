// Package evaluator decides, from one metric sample, whether the workload
// should change its replica count, step its quality tier, or hold.
package evaluator

import (
	"context"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/config"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/limiter"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/replicas"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/tier"
	"github.com/custom-self-adapter/quality-adapter/internal/logging"
	"github.com/custom-self-adapter/quality-adapter/internal/quantity"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

// State is a step of one evaluation.
type State string

const (
	StateStart           State = "Start"
	StateMetricsParsed   State = "MetricsParsed"
	StateReplicaDecision State = "ReplicaDecision"
	StateTierDecision    State = "TierDecision"
	StateHold            State = "Hold"
	StateEmitted         State = "Emitted"
)

// Evaluator produces exactly one Evaluation per request.
type Evaluator struct {
	config *config.AdapterConfig
	store  baseline.Store
}

// NewEvaluator creates an Evaluator. store may be nil, in which case tier
// steps up are not bounded by a baseline.
func NewEvaluator(cfg *config.AdapterConfig, store baseline.Store) *Evaluator {
	return &Evaluator{config: cfg, store: store}
}

// Evaluate returns the decision for req. Errors wrap csav1.ErrInvalidInput.
func (e *Evaluator) Evaluate(ctx context.Context, req *csav1.HookRequest) (csav1.Evaluation, error) {
	logger := ctrl.LoggerFrom(ctx)
	state := StateStart
	transition := func(next State, keysAndValues ...any) {
		logger.V(logging.DEBUG).Info("Evaluation transition",
			append([]any{"from", state, "to", next}, keysAndValues...)...)
		state = next
	}

	doc, err := csav1.ParseMetricsDocument(req.Metrics)
	if err != nil {
		return csav1.Evaluation{}, err
	}
	current, err := currentReplicas(doc, req.Resource)
	if err != nil {
		return csav1.Evaluation{}, err
	}
	planner, err := e.plannerFor(doc)
	if err != nil {
		return csav1.Evaluation{}, err
	}
	rate, idle, err := quantity.Ratio(doc.Current(), doc.Target())
	if err != nil {
		return csav1.Evaluation{}, fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err)
	}
	transition(StateMetricsParsed, "rate", rate, "idle", idle, "currentReplicas", current)

	var decision replicas.Decision
	if idle {
		decision = planner.PlanIdle(ctx, current)
	} else {
		decision, err = planner.Plan(ctx, current, rate)
		if err != nil {
			return csav1.Evaluation{}, fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err)
		}
	}

	var result csav1.Evaluation
	switch decision.Action {
	case replicas.ActionScaleOut, replicas.ActionScaleIn:
		transition(StateReplicaDecision, "action", decision.Action, "replicas", decision.Desired)
		result = csav1.ReplicasEvaluation(decision.Desired)
	case replicas.ActionTierFallback:
		if e.tierStepAvailable(ctx, req.Resource, decision.TierUp) {
			transition(StateTierDecision, "tagUp", decision.TierUp)
			result = csav1.TagEvaluation(decision.TierUp)
		} else {
			transition(StateHold, "reason", "no tier step available")
			result = csav1.HoldEvaluation()
		}
	default:
		transition(StateHold, "reason", "load within target")
		result = csav1.HoldEvaluation()
	}

	transition(StateEmitted, "strategy", result.Strategy)
	logger.Info("Evaluated", "strategy", result.Strategy, "parameters", string(result.Parameters), "rate", rate)
	return result, nil
}

func (e *Evaluator) plannerFor(doc *csav1.MetricsDocument) (*replicas.Planner, error) {
	bounds := e.config.LimiterConfig()
	if doc.MinReplicas != nil {
		bounds.MinReplicas = *doc.MinReplicas
	}
	if doc.MaxReplicas != nil {
		bounds.MaxReplicas = *doc.MaxReplicas
	}
	l, err := limiter.NewLimiter(limiter.BoundsStrategy, bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err)
	}
	return replicas.NewPlanner(l), nil
}

// tierStepAvailable reports whether the workload's current tier has a
// neighbour in the requested direction that the baseline permits.
func (e *Evaluator) tierStepAvailable(ctx context.Context, deploy *appsv1.Deployment, up bool) bool {
	logger := ctrl.LoggerFrom(ctx)
	if deploy == nil {
		logger.Info("No resource snapshot, cannot step tier")
		return false
	}

	container, err := workload.ContainerByName(deploy, e.config.ContainerName)
	if err != nil {
		logger.Info("Cannot step tier", "error", err.Error())
		return false
	}
	ref, err := tier.DecomposeImage(container.Image)
	if err != nil || ref.Tag == "" {
		logger.Info("Cannot step tier of untagged or invalid image", "image", container.Image)
		return false
	}

	tiers := e.config.TierList()
	if _, err := tiers.Adjacent(ref.Tag, up); err != nil {
		logger.Info("Cannot step tier", "tag", ref.Tag, "up", up, "error", err.Error())
		return false
	}
	if !up || e.store == nil {
		return true
	}

	key := types.NamespacedName{Namespace: deploy.Namespace, Name: deploy.Name}
	b, found, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, baseline.ErrStoreUnavailable):
		logger.Info("Baseline unavailable, not enforcing tier ceiling this cycle", "error", err.Error())
		return true
	case err != nil:
		logger.Error(err, "Failed to read baseline, not enforcing tier ceiling this cycle")
		return true
	case found && !tiers.StepUpAllowed(ref.Tag, b.Tag):
		logger.Info("Tier already at its baseline", "tag", ref.Tag, "baseline", b.Tag)
		return false
	}
	return true
}

func currentReplicas(doc *csav1.MetricsDocument, deploy *appsv1.Deployment) (int32, error) {
	if doc.CurrentReplicas != nil {
		return *doc.CurrentReplicas, nil
	}
	if deploy != nil && deploy.Spec.Replicas != nil {
		return *deploy.Spec.Replicas, nil
	}
	return 0, fmt.Errorf("%w: current replica count missing from metrics and resource", csav1.ErrInvalidInput)
}

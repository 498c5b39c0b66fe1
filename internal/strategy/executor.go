package strategy

import (
	"context"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/actuator"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/config"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

// Input is what a strategy acts upon.
type Input struct {
	// Workload identifies the managed Deployment.
	Workload types.NamespacedName
	// Deployment is the state read at the start of the cycle.
	Deployment *appsv1.Deployment
	// Evaluation carries the strategy parameters.
	Evaluation *csav1.Evaluation
}

// Strategy is one kind of adaptation.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, in *Input) (csav1.Outcome, error)
}

// Executor dispatches evaluations to strategies.
type Executor struct {
	client     client.Client
	actuator   *actuator.Actuator
	store      baseline.Store
	config     *config.AdapterConfig
	strategies map[string]Strategy
}

// NewExecutor creates an Executor with the built-in strategies. store may be
// nil, in which case no baseline is recorded or enforced.
func NewExecutor(c client.Client, act *actuator.Actuator, store baseline.Store, cfg *config.AdapterConfig) *Executor {
	e := &Executor{
		client:     c,
		actuator:   act,
		store:      store,
		config:     cfg,
		strategies: map[string]Strategy{},
	}
	e.Register(&replicaStrategy{executor: e})
	e.Register(&tagStrategy{executor: e})
	e.Register(&cpuStrategy{executor: e})
	return e
}

// Register adds or replaces a strategy.
func (e *Executor) Register(s Strategy) {
	e.strategies[s.Name()] = s
}

// Execute runs the strategy named by name, or by the request's evaluation
// when name is empty. The returned error wraps csav1.ErrInvalidInput or
// actuator.ErrPatchFailed when the outcome is an error.
func (e *Executor) Execute(ctx context.Context, req *csav1.HookRequest, name string) (csav1.Outcome, error) {
	logger := ctrl.LoggerFrom(ctx)

	if req.Evaluation == nil {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: missing evaluation", csav1.ErrInvalidInput)
	}
	if name == "" {
		name = req.Evaluation.Strategy
	}
	if req.Resource == nil || req.Resource.Name == "" || req.Resource.Namespace == "" {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: missing resource name or namespace", csav1.ErrInvalidInput)
	}
	key := types.NamespacedName{Namespace: req.Resource.Namespace, Name: req.Resource.Name}
	logger = logger.WithValues("workload", key, "strategy", name)
	ctx = ctrl.LoggerInto(ctx, logger)

	s, ok := e.strategies[name]
	if !ok {
		logger.Info("No adaptation for strategy, skipping")
		return csav1.SkipOutcome(), nil
	}

	deploy, err := workload.Get(ctx, e.client, key)
	if err != nil {
		logger.Error(err, "Failed to read workload")
		return csav1.ErrorOutcome(), err
	}

	outcome, err := s.Execute(ctx, &Input{Workload: key, Deployment: deploy, Evaluation: req.Evaluation})
	if err != nil {
		if !errors.Is(err, csav1.ErrInvalidInput) && !errors.Is(err, actuator.ErrPatchFailed) {
			logger.Error(err, "Adaptation failed")
		}
		return csav1.ErrorOutcome(), err
	}
	logger.Info("Adaptation finished", "outcome", outcome)
	return outcome, nil
}

// apply patches the Deployment and records metrics.
func (e *Executor) apply(ctx context.Context, strategy string, original, mutated *appsv1.Deployment) actuator.PatchOutcome {
	outcome := e.actuator.ApplyDeploymentPatch(ctx, original, mutated)
	e.actuator.MetricsEmitter.EmitOutcome(original.Namespace, original.Name, strategy, outcome)
	return outcome
}

// recordBaseline stores b, logging rather than failing when the store is
// unavailable.
func (e *Executor) recordBaseline(ctx context.Context, key types.NamespacedName, b baseline.Baseline) {
	if e.store == nil {
		return
	}
	if err := e.store.StoreIfAbsent(ctx, key, b); err != nil {
		ctrl.LoggerFrom(ctx).Info("Could not record baseline", "error", err.Error())
	}
}

// readBaseline returns the recorded baseline; ok is false when nothing is
// known, including when the store is unavailable.
func (e *Executor) readBaseline(ctx context.Context, key types.NamespacedName) (baseline.Baseline, bool) {
	if e.store == nil {
		return baseline.Baseline{}, false
	}
	b, found, err := e.store.Get(ctx, key)
	if err != nil {
		ctrl.LoggerFrom(ctx).Info("Baseline unavailable, not enforcing it this cycle", "error", err.Error())
		return baseline.Baseline{}, false
	}
	return b, found
}

// unapplied converts a skipped or failed actuation into its outcome.
func unapplied(p actuator.PatchOutcome) (csav1.Outcome, error) {
	if p.Result == actuator.ResultSkipped {
		return csav1.SkipOutcome(), nil
	}
	return csav1.ErrorOutcome(), p.Err
}

package strategy

import (
	"context"
	"fmt"

	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/limiter"
)

type replicaStrategy struct {
	executor *Executor
}

func (s *replicaStrategy) Name() string {
	return csav1.StrategyAdaptReplicas
}

func (s *replicaStrategy) Execute(ctx context.Context, in *Input) (csav1.Outcome, error) {
	logger := ctrl.LoggerFrom(ctx)

	var params csav1.ReplicaParameters
	if err := in.Evaluation.DecodeParameters(&params); err != nil {
		return csav1.ErrorOutcome(), err
	}
	if params.Replicas == nil || *params.Replicas < 0 {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: adapt_replicas needs a non-negative replicas parameter", csav1.ErrInvalidInput)
	}

	l, err := limiter.NewLimiter(limiter.BoundsStrategy, s.executor.config.LimiterConfig())
	if err != nil {
		return csav1.ErrorOutcome(), err
	}
	desired, _ := l.Limit(ctx, *params.Replicas)

	current := ptr.Deref(in.Deployment.Spec.Replicas, 0)
	if desired == current {
		logger.Info("Workload already runs the requested replicas", "replicas", current)
		return csav1.SkipOutcome(), nil
	}

	mutated := in.Deployment.DeepCopy()
	mutated.Spec.Replicas = ptr.To(desired)
	patch := s.executor.apply(ctx, s.Name(), in.Deployment, mutated)
	if !patch.Applied {
		return unapplied(patch)
	}

	s.executor.actuator.MetricsEmitter.EmitDesiredReplicas(in.Workload.Namespace, in.Workload.Name, patch.Replicas)
	logger.Info("Scaled workload", "from", current, "to", patch.Replicas)
	return csav1.Outcome{Replicas: ptr.To(patch.Replicas)}, nil
}

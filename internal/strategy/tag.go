package strategy

import (
	"context"
	"errors"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/tier"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

type tagStrategy struct {
	executor *Executor
}

func (s *tagStrategy) Name() string {
	return csav1.StrategyAdaptTag
}

func (s *tagStrategy) Execute(ctx context.Context, in *Input) (csav1.Outcome, error) {
	logger := ctrl.LoggerFrom(ctx)
	cfg := s.executor.config

	var params csav1.TagParameters
	if err := in.Evaluation.DecodeParameters(&params); err != nil {
		return csav1.ErrorOutcome(), err
	}
	if params.TagUp == nil {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: adapt_tag needs a tag_up parameter", csav1.ErrInvalidInput)
	}
	up := *params.TagUp

	if workload.RolloutInProgress(in.Deployment) {
		logger.Info("Rollout in progress, skipping")
		return csav1.SkipOutcome(), nil
	}

	mutated := in.Deployment.DeepCopy()
	container, err := workload.ContainerByName(mutated, cfg.ContainerName)
	if err != nil {
		return csav1.ErrorOutcome(), err
	}
	ref, err := tier.DecomposeImage(container.Image)
	if err != nil {
		return csav1.ErrorOutcome(), err
	}
	if ref.Tag == "" {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: image %q has no tag", tier.ErrInvalidImage, container.Image)
	}

	s.executor.recordBaseline(ctx, in.Workload, baseline.Baseline{Tag: ref.Tag})

	tiers := cfg.TierList()
	if up {
		if b, ok := s.executor.readBaseline(ctx, in.Workload); ok && b.Tag != "" && !tiers.StepUpAllowed(ref.Tag, b.Tag) {
			logger.Info("Tier already at its baseline, skipping", "tag", ref.Tag, "baseline", b.Tag)
			return csav1.SkipOutcome(), nil
		}
	}

	next, err := tiers.Adjacent(ref.Tag, up)
	if errors.Is(err, tier.ErrNoAdjacentTier) || errors.Is(err, tier.ErrUnrecognizedTier) {
		logger.Info("No tier to step to, skipping", "tag", ref.Tag, "up", up, "reason", err.Error())
		return csav1.SkipOutcome(), nil
	}
	if err != nil {
		return csav1.ErrorOutcome(), err
	}

	container.Image = ref.WithTag(next).String()
	patch := s.executor.apply(ctx, s.Name(), in.Deployment, mutated)
	if !patch.Applied {
		return unapplied(patch)
	}

	s.executor.actuator.MetricsEmitter.EmitQualityTier(in.Workload.Namespace, in.Workload.Name, next, tiers.Index(next))
	logger.Info("Stepped quality tier", "from", ref.Tag, "to", next, "image", container.Image)
	return csav1.Outcome{Tag: next}, nil
}

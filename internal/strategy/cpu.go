package strategy

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	ctrl "sigs.k8s.io/controller-runtime"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

type cpuStrategy struct {
	executor *Executor
}

func (s *cpuStrategy) Name() string {
	return csav1.StrategyAdaptCPU
}

func (s *cpuStrategy) Execute(ctx context.Context, in *Input) (csav1.Outcome, error) {
	logger := ctrl.LoggerFrom(ctx)
	cfg := s.executor.config

	var params csav1.CPUParameters
	if err := in.Evaluation.DecodeParameters(&params); err != nil {
		return csav1.ErrorOutcome(), err
	}
	if params.Direction != csav1.DirectionUp && params.Direction != csav1.DirectionDown {
		return csav1.ErrorOutcome(), fmt.Errorf("%w: adapt_cpu direction must be %q or %q, got %q",
			csav1.ErrInvalidInput, csav1.DirectionUp, csav1.DirectionDown, params.Direction)
	}
	step := cfg.CPUStep
	if params.CPU != nil {
		if *params.CPU <= 0 || *params.CPU >= 1 {
			return csav1.ErrorOutcome(), fmt.Errorf("%w: adapt_cpu cpu must be between 0 and 1, got %v", csav1.ErrInvalidInput, *params.CPU)
		}
		step = *params.CPU
	}

	if workload.RolloutInProgress(in.Deployment) {
		logger.Info("Rollout in progress, skipping")
		return csav1.SkipOutcome(), nil
	}

	template, err := workload.ContainerByName(in.Deployment, cfg.ContainerName)
	if err != nil {
		return csav1.ErrorOutcome(), err
	}
	if limit, ok := template.Resources.Limits[corev1.ResourceCPU]; ok {
		s.executor.recordBaseline(ctx, in.Workload, baseline.Baseline{CPULimit: limit.String()})
	}

	pod, err := workload.PodForDeployment(ctx, s.executor.client, in.Deployment)
	if errors.Is(err, workload.ErrNoPodFound) {
		logger.Info("No pod to resize, skipping", "reason", err.Error())
		return csav1.SkipOutcome(), nil
	}
	if err != nil {
		return csav1.ErrorOutcome(), err
	}
	running, err := workload.PodContainerByName(pod, cfg.ContainerName)
	if err != nil {
		return csav1.ErrorOutcome(), err
	}

	currentLimit := running.Resources.Limits.Cpu().MilliValue()
	if currentLimit == 0 {
		currentLimit = template.Resources.Limits.Cpu().MilliValue()
	}
	if currentLimit == 0 {
		return csav1.ErrorOutcome(), fmt.Errorf("container %q of pod %s has no CPU limit", cfg.ContainerName, pod.Name)
	}
	currentRequest := running.Resources.Requests.Cpu().MilliValue()

	requestFloor, limitFloor := cfg.CPUFloors()
	bounds := cpuBounds{
		requestFloor: requestFloor.MilliValue(),
		limitFloor:   limitFloor.MilliValue(),
	}
	if b, ok := s.executor.readBaseline(ctx, in.Workload); ok && b.CPULimit != "" {
		if q, err := resource.ParseQuantity(b.CPULimit); err == nil {
			bounds.baselineLimit = q.MilliValue()
		} else {
			logger.Info("Ignoring unparseable baseline CPU limit", "cpuLimit", b.CPULimit)
		}
	}

	newRequest, newLimit := bounds.step(currentRequest, currentLimit, step, params.Direction == csav1.DirectionUp)
	if newLimit == currentLimit && newRequest == currentRequest {
		logger.Info("CPU already at its bound, skipping", "cpuLimit", currentLimit, "direction", params.Direction)
		return csav1.SkipOutcome(), nil
	}

	resources := *running.Resources.DeepCopy()
	if resources.Limits == nil {
		resources.Limits = corev1.ResourceList{}
	}
	resources.Limits[corev1.ResourceCPU] = *resource.NewMilliQuantity(newLimit, resource.DecimalSI)
	if currentRequest > 0 {
		resources.Requests[corev1.ResourceCPU] = *resource.NewMilliQuantity(newRequest, resource.DecimalSI)
	}

	patch := s.executor.actuator.ApplyPodResize(ctx, in.Deployment, pod, cfg.ContainerName, resources)
	s.executor.actuator.MetricsEmitter.EmitOutcome(in.Workload.Namespace, in.Workload.Name, s.Name(), patch)
	if !patch.Applied {
		return unapplied(patch)
	}

	s.executor.actuator.MetricsEmitter.EmitCPULimit(in.Workload.Namespace, in.Workload.Name, pod.Name, newLimit)
	logger.Info("Resized pod CPU", "pod", pod.Name, "fromLimit", currentLimit, "toLimit", newLimit,
		"fromRequest", currentRequest, "toRequest", newRequest)
	return csav1.Outcome{CPULimit: patch.CPULimit, Pod: patch.Pod}, nil
}

// cpuBounds holds millicore floors for one resize.
type cpuBounds struct {
	requestFloor  int64
	limitFloor    int64
	baselineLimit int64
}

// step moves request and limit by the fraction step. Going up, the limit
// never shrinks. Going down, the limit ends at the baseline or above, so a
// pod running below the baseline is raised back to it while its request
// still steps down. The limit keeps its floor, the request keeps its floor
// and never exceeds the limit. A zero request stays zero.
func (b cpuBounds) step(request, limit int64, step float64, up bool) (int64, int64) {
	factor := 1 - step
	if up {
		factor = 1 + step
	}

	newLimit := int64(float64(limit) * factor)
	if up {
		newLimit = max(newLimit, limit)
	} else {
		newLimit = min(newLimit, limit)
		newLimit = max(newLimit, b.baselineLimit)
	}
	newLimit = max(newLimit, b.limitFloor)

	if request == 0 {
		return 0, newLimit
	}
	newRequest := int64(float64(request) * factor)
	newRequest = max(newRequest, b.requestFloor)
	newRequest = min(newRequest, newLimit)
	return newRequest, newLimit
}

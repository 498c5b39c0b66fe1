package actuator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/custom-self-adapter/quality-adapter/internal/logging"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

// ErrPatchFailed wraps every error returned by the API server for a patch.
var ErrPatchFailed = errors.New("patch failed")

// ResizeSubresource is the Pod subresource used for in-place resizes.
const ResizeSubresource = "resize"

// Result is the overall result of an actuation.
type Result string

const (
	ResultApplied Result = "applied"
	ResultSkipped Result = "skip"
	ResultError   Result = "error"
)

// ErrorKind classifies failed or skipped actuations.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindRolloutInProgress ErrorKind = "RolloutInProgress"
	ErrorKindPatchFailed       ErrorKind = "PatchFailed"
)

// PatchOutcome describes what an actuation did.
type PatchOutcome struct {
	Applied   bool
	Result    Result
	Replicas  int32
	Image     string
	CPULimit  string
	Pod       string
	ErrorKind ErrorKind
	Err       error
}

func (o PatchOutcome) String() string {
	s := string(o.Result)
	if o.ErrorKind != ErrorKindNone {
		s += "(" + string(o.ErrorKind) + ")"
	}
	if o.Applied && o.Replicas > 0 {
		s += " replicas=" + strconv.Itoa(int(o.Replicas))
	}
	return s
}

// Actuator applies changes to Deployments and Pods.
type Actuator struct {
	Client         client.Client
	MetricsEmitter *MetricsEmitter
}

// NewActuator creates an Actuator. emitter may be nil.
func NewActuator(k8sClient client.Client, emitter *MetricsEmitter) *Actuator {
	return &Actuator{
		Client:         k8sClient,
		MetricsEmitter: emitter,
	}
}

// ApplyDeploymentPatch patches the Deployment from original to mutated.
// original must be the snapshot mutated was derived from: it is checked by
// the rollout guard and its resourceVersion is the patch precondition.
func (a *Actuator) ApplyDeploymentPatch(ctx context.Context, original, mutated *appsv1.Deployment) PatchOutcome {
	logger := ctrl.LoggerFrom(ctx).WithValues("namespace", original.Namespace, "deployment", original.Name)

	if workload.RolloutInProgress(original) {
		logger.Info("Rollout in progress, skipping deployment patch",
			"generation", original.Generation,
			"observedGeneration", original.Status.ObservedGeneration,
			"updatedReplicas", original.Status.UpdatedReplicas,
			"availableReplicas", original.Status.AvailableReplicas)
		return PatchOutcome{Result: ResultSkipped, ErrorKind: ErrorKindRolloutInProgress, Err: workload.ErrRolloutInProgress}
	}

	patch := client.MergeFromWithOptions(original, client.MergeFromWithOptimisticLock{})
	if err := a.Client.Patch(ctx, mutated, patch); err != nil {
		logger.Error(err, "Failed to patch deployment", "conflict", apierrors.IsConflict(err))
		return PatchOutcome{
			Result:    ResultError,
			ErrorKind: ErrorKindPatchFailed,
			Err:       fmt.Errorf("%w: deployment %s/%s: %w", ErrPatchFailed, original.Namespace, original.Name, err),
		}
	}

	outcome := PatchOutcome{
		Applied:  true,
		Result:   ResultApplied,
		Replicas: ptr.Deref(mutated.Spec.Replicas, 0),
	}
	logger.V(logging.DEBUG).Info("Patched deployment",
		"replicas", outcome.Replicas, "resourceVersion", mutated.ResourceVersion)
	return outcome
}

// ApplyPodResize sets the resources of container in pod through the resize
// subresource. owner is the Deployment the pod belongs to and gates the
// resize with the rollout guard.
func (a *Actuator) ApplyPodResize(ctx context.Context, owner *appsv1.Deployment, pod *corev1.Pod, container string, resources corev1.ResourceRequirements) PatchOutcome {
	logger := ctrl.LoggerFrom(ctx).WithValues("namespace", pod.Namespace, "pod", pod.Name, "container", container)

	if workload.RolloutInProgress(owner) {
		logger.Info("Rollout in progress, skipping pod resize")
		return PatchOutcome{Result: ResultSkipped, ErrorKind: ErrorKindRolloutInProgress, Pod: pod.Name, Err: workload.ErrRolloutInProgress}
	}

	resized := pod.DeepCopy()
	target, err := workload.PodContainerByName(resized, container)
	if err != nil {
		return PatchOutcome{Result: ResultError, ErrorKind: ErrorKindPatchFailed, Pod: pod.Name, Err: err}
	}
	target.Resources = resources

	patch := client.StrategicMergeFrom(pod)
	if err := a.Client.SubResource(ResizeSubresource).Patch(ctx, resized, patch); err != nil {
		logger.Error(err, "Failed to resize pod")
		return PatchOutcome{
			Result:    ResultError,
			ErrorKind: ErrorKindPatchFailed,
			Pod:       pod.Name,
			Err:       fmt.Errorf("%w: resize of pod %s/%s: %w", ErrPatchFailed, pod.Namespace, pod.Name, err),
		}
	}

	outcome := PatchOutcome{Applied: true, Result: ResultApplied, Pod: pod.Name}
	if limit, ok := resources.Limits[corev1.ResourceCPU]; ok {
		outcome.CPULimit = limit.String()
	}
	logger.V(logging.DEBUG).Info("Resized pod", "cpuLimit", outcome.CPULimit)
	return outcome
}

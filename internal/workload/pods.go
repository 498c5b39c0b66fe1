package workload

import (
	"context"
	"errors"
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

// ErrNoPodFound is returned when no running pod backs the Deployment.
var ErrNoPodFound = errors.New("no pod found")

// PodForDeployment picks one pod selected by deploy. Ready pods are preferred
// over pods that are merely running; terminating and finished pods are never
// picked. Ties are broken by name so that repeated calls agree.
func PodForDeployment(ctx context.Context, c client.Reader, deploy *appsv1.Deployment) (*corev1.Pod, error) {
	logger := ctrl.LoggerFrom(ctx)

	if deploy.Spec.Selector == nil {
		return nil, fmt.Errorf("%w: deployment %s/%s has no selector", ErrNoPodFound, deploy.Namespace, deploy.Name)
	}
	selector, err := metav1.LabelSelectorAsSelector(deploy.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector on deployment %s/%s: %w", deploy.Namespace, deploy.Name, err)
	}

	pods := &corev1.PodList{}
	if err := c.List(ctx, pods, client.InNamespace(deploy.Namespace), client.MatchingLabelsSelector{Selector: selector}); err != nil {
		return nil, fmt.Errorf("failed to list pods of deployment %s/%s: %w", deploy.Namespace, deploy.Name, err)
	}

	var ready, running []*corev1.Pod
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.DeletionTimestamp != nil || pod.Status.Phase != corev1.PodRunning {
			continue
		}
		if IsPodReady(pod) {
			ready = append(ready, pod)
		} else {
			running = append(running, pod)
		}
	}

	candidates := ready
	if len(candidates) == 0 {
		candidates = running
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: deployment %s/%s has no running pods", ErrNoPodFound, deploy.Namespace, deploy.Name)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	logger.V(logging.DEBUG).Info("Selected pod",
		"pod", candidates[0].Name, "ready", len(ready), "running", len(running))
	return candidates[0], nil
}

// IsPodReady reports whether the pod's Ready condition is true.
func IsPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

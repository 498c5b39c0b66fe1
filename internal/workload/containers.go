package workload

import (
	"context"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrContainerNotFound is returned when the adapted container is missing
// from the pod template.
var ErrContainerNotFound = errors.New("container not found")

// ContainerByName returns the named container of the pod template. The
// returned pointer aliases deploy, so changes made through it are part of
// the Deployment.
func ContainerByName(deploy *appsv1.Deployment, name string) (*corev1.Container, error) {
	containers := deploy.Spec.Template.Spec.Containers
	for i := range containers {
		if containers[i].Name == name {
			return &containers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in deployment %s/%s", ErrContainerNotFound, name, deploy.Namespace, deploy.Name)
}

// PodContainerByName is ContainerByName for a running Pod.
func PodContainerByName(pod *corev1.Pod, name string) (*corev1.Container, error) {
	for i := range pod.Spec.Containers {
		if pod.Spec.Containers[i].Name == name {
			return &pod.Spec.Containers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in pod %s/%s", ErrContainerNotFound, name, pod.Namespace, pod.Name)
}

// Get reads the current state of a Deployment.
func Get(ctx context.Context, c client.Reader, key types.NamespacedName) (*appsv1.Deployment, error) {
	deploy := &appsv1.Deployment{}
	if err := c.Get(ctx, key, deploy); err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", key, err)
	}
	return deploy, nil
}

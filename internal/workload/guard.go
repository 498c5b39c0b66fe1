package workload

import (
	"errors"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/utils/ptr"
)

// ErrRolloutInProgress marks an adaptation skipped by the rollout guard. It is
// not a failure.
var ErrRolloutInProgress = errors.New("rollout in progress")

// RolloutInProgress reports whether deploy is still converging on its spec.
// A Deployment is settled only when the controller observed the latest
// generation and every desired replica is both updated and available. Absent
// fields count as zero, and a nil snapshot is never considered settled.
func RolloutInProgress(deploy *appsv1.Deployment) bool {
	if deploy == nil {
		return true
	}
	specReplicas := ptr.Deref(deploy.Spec.Replicas, 0)
	status := deploy.Status
	settled := status.ObservedGeneration >= deploy.Generation &&
		status.UpdatedReplicas == specReplicas &&
		status.AvailableReplicas == specReplicas
	return !settled
}

// Package actuator applies adaptation decisions to the managed workload and
// emits metrics describing them.
//
// # Architecture
//
// The adapter runs once per cycle as a short-lived hook process:
//
//	metric hook → evaluate hook → adapt hook → Actuator → Kubernetes API
//
// The actuator is the only component that mutates cluster state. It never
// retries; a failed patch is reported and the next cycle decides again from
// fresh state.
//
// # Actuator Responsibilities
//
//  1. Deployment patches:
//     - Re-check the rollout guard on the snapshot the change was derived from
//     - Send a JSON merge patch carrying the snapshot's resourceVersion so a
//     concurrent writer makes the patch fail instead of being overwritten
//
//  2. In-place pod resize:
//     - Patch the "resize" subresource of one Pod with new CPU resources
//     - Gate on the owning Deployment's rollout guard
//
//  3. Metric emission:
//     - Record decisions, outcomes, desired replicas and the active quality
//     tier in a private Prometheus registry
//     - Push the registry to a Pushgateway at exit when one is configured
//
// # Metric Emission
//
// The emitter exposes:
//
//	csa_adaptations_total{namespace, deployment, strategy, result}
//	csa_desired_replicas{namespace, deployment}
//	csa_quality_tier_index{namespace, deployment, tag}
//	csa_cpu_limit_millicores{namespace, deployment, pod}
//
// # Error Handling
//
// Patch errors are wrapped in ErrPatchFailed and carried by PatchOutcome
// together with an ErrorKind, so that callers can print a result document
// and pick an exit status without inspecting API errors.
//
// # Usage Example
//
//	act := actuator.NewActuator(k8sClient, actuator.NewMetricsEmitter())
//
//	mutated := deploy.DeepCopy()
//	mutated.Spec.Replicas = ptr.To(int32(5))
//	outcome := act.ApplyDeploymentPatch(ctx, deploy, mutated)
//	switch outcome.Result {
//	case actuator.ResultSkipped:
//		// report {"result":"skip"}; outcome.Err is ErrRolloutInProgress
//	case actuator.ResultError:
//		// report {"result":"error"}
//	}
package actuator

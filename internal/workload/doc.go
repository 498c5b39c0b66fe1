// Package workload holds the read side of the managed Deployment: the rollout
// guard that gates every mutation, container lookup and the selection of a
// pod to resize in place.
package workload

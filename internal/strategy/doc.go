// Package strategy executes the adaptation named by an evaluation against
// the live state of the workload.
//
// Every strategy re-reads the Deployment, refuses to act while a rollout is
// in progress and reports exactly one outcome document. Known strategies:
//
//   - adapt_replicas: set spec.replicas, clamped to the configured bounds
//   - adapt_tag: step the container image one quality tier up or down,
//     never above the tier recorded when the workload was first seen
//   - adapt_cpu: resize one pod's CPU in place, never below the recorded
//     initial limit when going down
//
// Unknown strategies and the hold strategy are reported as skipped.
package strategy

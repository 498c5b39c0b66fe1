// Package replicas turns a load ratio into a replica decision.
//
// The desired count is the current count scaled by the ratio and rounded up.
// When the limiter prevents the count from moving in the direction the load
// asks for, the planner reports a tier fallback instead: degrade quality
// under overload at the ceiling, raise quality when the floor is reached
// with spare capacity.
package replicas

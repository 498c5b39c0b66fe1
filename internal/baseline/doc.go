// Package baseline records the state a workload had when the adapter first
// saw it.
//
// The recorded image tag is the highest tier the workload may return to and
// the recorded CPU limit is the lowest limit it may be reduced to. Each field
// is written at most once per workload. Records live in a JSON annotation on
// the adapter's own Pod; the adapter operator mirrors that annotation into
// the status of the CustomSelfAdapter object, which may optionally be read
// first.
package baseline

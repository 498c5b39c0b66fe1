// Package app runs one adapter hook: it reads a single JSON request from
// stdin, performs the metric, evaluate or adapt step against the cluster and
// writes a single JSON document to stdout.
//
// Every invocation is a fresh process. Nothing is carried between hooks
// except what is stored in the cluster: the workload itself and the baseline
// annotation of the adapter Pod.
package app

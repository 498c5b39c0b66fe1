// Package collector turns the Kubernetes metric values handed to the metric
// hook into the metrics document read by the evaluate hook.
//
// # Sources
//
// Each entry of the request's kubernetesMetrics carries a metric spec and
// its observed status. A MetricSource understands one spec type:
//
//   - external: spec.external.target / external.current (the default for the
//     latency metrics the adapter is deployed with)
//   - object: spec.object.target / object.current
//   - pods: spec.pods.target.averageValue / pods.current.averageValue
//   - resource: averageValue, or averageUtilization read as a plain number
//
// The first entry a source can read wins. Values are written as millivalue
// strings ("1500m") on both sides so the evaluator scales them identically.
//
// # Usage
//
//	doc, err := collector.NewCollector().Collect(ctx, req)
//	if err != nil {
//		// err wraps csav1.ErrInvalidInput
//	}
//	json.NewEncoder(os.Stdout).Encode(doc)
package collector

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/actuator"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/collector"
	"github.com/custom-self-adapter/quality-adapter/internal/config"
	"github.com/custom-self-adapter/quality-adapter/internal/evaluator"
	"github.com/custom-self-adapter/quality-adapter/internal/strategy"
)

// Exit codes reported with strict exit handling.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitPatchFailed  = 3
)

// Runner executes hooks. Client may be nil for the metric hook.
type Runner struct {
	Client client.Client
	Config *config.AdapterConfig
	// ConfigMap, when set, names a ConfigMap whose entries override Config
	// for the workload of the request.
	ConfigMap *types.NamespacedName
	// Store may be nil, in which case no baseline is recorded or enforced.
	Store   baseline.Store
	Emitter *actuator.MetricsEmitter

	Stdin  io.Reader
	Stdout io.Writer
}

// Metric writes the metrics document for the request's Kubernetes metrics.
func (r *Runner) Metric(ctx context.Context) error {
	req, err := r.readRequest()
	if err != nil {
		return r.fail(ctx, err)
	}
	doc, err := collector.NewCollector().Collect(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}
	return r.write(doc)
}

// Evaluate writes the decision for the request's metrics.
func (r *Runner) Evaluate(ctx context.Context) error {
	req, err := r.readRequest()
	if err != nil {
		return r.fail(ctx, err)
	}
	cfg, err := r.configFor(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}
	eval, err := evaluator.NewEvaluator(cfg, r.Store).Evaluate(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}
	return r.write(eval)
}

// Adapt applies the request's evaluation using the named strategy, or the
// evaluation's own strategy when name is empty.
func (r *Runner) Adapt(ctx context.Context, name string) error {
	req, err := r.readRequest()
	if err != nil {
		return r.fail(ctx, err)
	}
	if r.Client == nil {
		return r.fail(ctx, errors.New("adapt requires a Kubernetes client"))
	}
	cfg, err := r.configFor(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}

	exec := strategy.NewExecutor(r.Client, actuator.NewActuator(r.Client, r.Emitter), r.Store, cfg)
	outcome, execErr := exec.Execute(ctx, req, name)
	r.push(ctx, cfg, req)
	if writeErr := r.write(outcome); writeErr != nil {
		return writeErr
	}
	return execErr
}

// ExitCode maps the error returned by a hook to the process exit code. With
// strict disabled every hook exits zero and failures are only visible in the
// output document.
func ExitCode(err error, strict bool) int {
	switch {
	case err == nil || !strict:
		return ExitOK
	case errors.Is(err, csav1.ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, actuator.ErrPatchFailed):
		return ExitPatchFailed
	default:
		return ExitFailure
	}
}

func (r *Runner) readRequest() (*csav1.HookRequest, error) {
	req := &csav1.HookRequest{}
	if err := json.NewDecoder(r.Stdin).Decode(req); err != nil {
		return nil, fmt.Errorf("%w: failed to decode request: %v", csav1.ErrInvalidInput, err)
	}
	return req, nil
}

// configFor applies the ConfigMap overrides for the request's workload.
func (r *Runner) configFor(ctx context.Context, req *csav1.HookRequest) (*config.AdapterConfig, error) {
	if r.ConfigMap == nil || r.Client == nil || req.Resource == nil {
		return r.Config, nil
	}
	data, err := config.ReadConfigMap(ctx, r.Client, *r.ConfigMap)
	if err != nil {
		return nil, err
	}
	workload := types.NamespacedName{Namespace: req.Resource.Namespace, Name: req.Resource.Name}
	cfg, err := data.ForWorkload(r.Config, workload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err)
	}
	return cfg, nil
}

// push sends the adaptation metrics to the Pushgateway. Failures are logged
// only.
func (r *Runner) push(ctx context.Context, cfg *config.AdapterConfig, req *csav1.HookRequest) {
	if cfg.PushgatewayURL == "" || r.Emitter == nil || req.Resource == nil {
		return
	}
	if err := r.Emitter.Push(ctx, cfg.PushgatewayURL, req.Resource.Namespace, req.Resource.Name); err != nil {
		ctrl.LoggerFrom(ctx).Error(err, "Failed to push adaptation metrics", "url", cfg.PushgatewayURL)
	}
}

// fail writes the error document and returns err.
func (r *Runner) fail(ctx context.Context, err error) error {
	ctrl.LoggerFrom(ctx).Error(err, "Hook failed")
	if writeErr := r.write(csav1.ErrorOutcome()); writeErr != nil {
		return errors.Join(err, writeErr)
	}
	return err
}

func (r *Runner) write(doc any) error {
	if err := json.NewEncoder(r.Stdout).Encode(doc); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

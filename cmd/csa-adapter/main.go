// Command csa-adapter implements the metric, evaluate and adapt hooks of a
// custom self-adapter. Each hook reads one JSON request from stdin and
// writes one JSON document to stdout; logs go to stderr and a log file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/actuator"
	"github.com/custom-self-adapter/quality-adapter/internal/app"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/config"
	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(csav1.AddToScheme(scheme))
}

type options struct {
	logFile     string
	verbosity   int
	development bool
	strictExit  bool
	timeout     time.Duration

	exitCode int
}

func main() {
	opts := &options{}
	os.Exit(execute(newRootCommand(opts), opts))
}

// execute runs root and returns the process exit code. Command line errors
// are reported like invalid input, with the error document on stdout.
func execute(root *cobra.Command, opts *options) int {
	if err := root.Execute(); err != nil {
		_ = json.NewEncoder(root.OutOrStdout()).Encode(csav1.ErrorOutcome())
		return app.ExitCode(fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err), opts.strictExit)
	}
	return opts.exitCode
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:          "csa-adapter",
		Short:        "Quality and replica adaptation hooks for a custom self-adapter",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logFile, "log-file", logging.DefaultLogFile, "file every log line is appended to, empty to disable")
	pf.IntVarP(&opts.verbosity, "verbosity", "v", 0, "log verbosity (1 debug, 2 trace)")
	pf.BoolVar(&opts.development, "development", false, "use the console log encoder")
	pf.BoolVar(&opts.strictExit, "strict-exit", false, "exit non-zero when the hook fails (2 invalid input, 3 patch failed)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "overall deadline of the hook, zero for none")
	config.AddFlags(pf)
	// --kubeconfig is registered by controller-runtime on the go flag set
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		&cobra.Command{
			Use:   "metric",
			Short: "Extract the metrics document from Kubernetes metric values",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(cmd, false, func(ctx context.Context, r *app.Runner) error {
					return r.Metric(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "evaluate",
			Short: "Decide how the workload should adapt",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(cmd, true, func(ctx context.Context, r *app.Runner) error {
					return r.Evaluate(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "adapt [strategy]",
			Short: "Apply an evaluation to the workload",
			Long: "Apply the evaluation of the request. The strategy defaults to the one named by " +
				"the evaluation; one of adapt_replicas, adapt_tag or adapt_cpu.",
			Args: cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				return opts.run(cmd, true, func(ctx context.Context, r *app.Runner) error {
					return r.Adapt(ctx, name)
				})
			},
		},
	)
	return root
}

// run sets up logging, configuration and the cluster client, then runs hook.
// Hook failures are reported in the output document and through exitCode,
// never as a command error.
func (o *options) run(cmd *cobra.Command, needsCluster bool, hook func(context.Context, *app.Runner) error) error {
	logger, closer, err := logging.Setup(logging.Options{
		Verbosity:   o.verbosity,
		Development: o.development,
		File:        o.logFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger, closer, _ = logging.Setup(logging.Options{Verbosity: o.verbosity, Development: o.development})
	}
	defer func() { _ = closer.Close() }()

	logger = logging.WithCycle(logger).WithValues("hook", cmd.Name())
	ctx := ctrl.LoggerInto(cmd.Context(), logger)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	runner, err := o.newRunner(ctx, cmd, needsCluster)
	if err != nil {
		logger.Error(err, "Failed to set up hook")
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(csav1.ErrorOutcome())
		o.exitCode = app.ExitCode(err, o.strictExit)
		return nil
	}

	o.exitCode = app.ExitCode(hook(ctx, runner), o.strictExit)
	return nil
}

func (o *options) newRunner(ctx context.Context, cmd *cobra.Command, needsCluster bool) (*app.Runner, error) {
	logger := ctrl.LoggerFrom(ctx)

	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", csav1.ErrInvalidInput, err)
	}
	logger.V(logging.DEBUG).Info("Loaded configuration", "config", cfg)

	runner := &app.Runner{
		Config:  cfg,
		Emitter: actuator.NewMetricsEmitter(),
		Stdin:   cmd.InOrStdin(),
		Stdout:  cmd.OutOrStdout(),
	}
	if !needsCluster {
		return runner, nil
	}

	if cm, _ := cmd.Flags().GetString("config-map"); cm != "" {
		key, err := config.ParseObjectKey(cm)
		if err != nil {
			return nil, fmt.Errorf("%w: --config-map: %v", csav1.ErrInvalidInput, err)
		}
		runner.ConfigMap = &key
	}

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		logger.Error(err, "No cluster configuration, running without a client")
		return runner, nil
	}
	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	runner.Client = c

	companion, err := baseline.CompanionFromEnv()
	if err != nil {
		logger.Info("Baseline store disabled", "reason", err.Error())
		return runner, nil
	}
	runner.Store = baseline.NewAnnotationStore(c, companion, baseline.WithStatusProjection(cfg.ReadStatusProjection))
	return runner, nil
}

// Package logging configures the process-wide logr logger used by the
// adapter commands.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels passed to logr's V().
const (
	DEBUG = 1
	TRACE = 2
)

// DefaultLogFile mirrors every log line of an adapter invocation so that
// operators can inspect decisions after the hook process has exited.
const DefaultLogFile = "/tmp/adapter.log"

// Options controls the logger built by Setup.
type Options struct {
	// Verbosity is the highest V() level emitted.
	Verbosity int
	// Development switches to the human friendly console encoder.
	Development bool
	// File is appended to in addition to stderr. Empty disables it.
	File string
}

// Setup builds a zap backed logr.Logger writing to stderr and, optionally, a
// log file, and installs it as the controller-runtime logger. The returned
// closer releases the log file.
func Setup(opts Options) (logr.Logger, io.Closer, error) {
	var sink io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return logr.Discard(), closer, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		sink = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	level := uberzap.NewAtomicLevelAt(zapcore.Level(-opts.Verbosity))
	logger := zap.New(
		zap.WriteTo(sink),
		zap.UseDevMode(opts.Development),
		zap.Level(level),
	)
	ctrl.SetLogger(logger)
	return logger, closer, nil
}

// WithCycle tags logger with a fresh identifier so that every line of one
// invocation can be correlated across the evaluate and adapt hooks.
func WithCycle(logger logr.Logger) logr.Logger {
	return logger.WithValues("cycle", uuid.NewString())
}

// NewTestLogger routes controller-runtime logging to the ginkgo writer.
func NewTestLogger() {
	ctrl.SetLogger(zap.New(
		zap.WriteTo(ginkgo.GinkgoWriter),
		zap.UseDevMode(true),
		zap.Level(uberzap.NewAtomicLevelAt(zapcore.Level(-TRACE))),
	))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/ajitpratap0/ctrflow/pkg/observability"
)

var version = "0.1.0"

// app carries what every subcommand needs once the global flags are
// applied.
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string
	trace       bool

	cfg      *config.Config
	log      *zap.Logger
	runID    string
	shutdown observability.ShutdownFunc
	server   *http.Server
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ctrflow",
		Short: "ctrflow - streaming click-through-rate modelling",
		Long: `ctrflow turns a raw click log into sparse features with a two-pass
feature pipeline, trains an online logistic regression on them in a single
pass and evaluates it with log-loss, k-fold cross-validation and learning
curves.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file (defaults apply when empty)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	flags.BoolVar(&a.trace, "trace", false, "Export OpenTelemetry spans to stderr")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newImportTSVCmd(a),
		newFitPipelineCmd(a),
		newTransformCmd(a),
		newFitCmd(a),
		newCVCmd(a),
		newCurveCmd(a),
		newSubmitCmd(a),
		newRunCmd(a),
	)
	return root
}

// setup loads the configuration and starts logging, tracing and metrics.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.trace {
		cfg.Tracing.Enabled = true
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	}); err != nil {
		return err
	}
	a.runID = fmt.Sprintf("%s-%d", cfg.Name, time.Now().Unix())
	a.log = logger.With(
		zap.String("component", "ctrflow-cli"),
		zap.String("command", cmd.Name()),
	)

	a.shutdown, err = observability.InitTracing(cmd.Context(), cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.server = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		a.log.Info("serving metrics", zap.String("address", cfg.Metrics.Address))
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("failed to stop metrics server", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
	return nil
}

// runContext returns the command context tagged with the run id.
func (a *app) runContext(cmd *cobra.Command) context.Context {
	return logger.ContextWithRun(cmd.Context(), a.runID)
}

// step runs fn as a named step of a command and logs its duration.
func (a *app) step(name string, fn func() error) error {
	timer := metrics.NewTimer(name)
	a.log.Info("step started", zap.String("step", name))
	if err := fn(); err != nil {
		a.log.Error("step failed", zap.String("step", name), zap.Error(err))
		return err
	}
	a.log.Info("step completed", zap.String("step", timer.Name()), zap.Duration("duration", timer.Stop()))
	return nil
}

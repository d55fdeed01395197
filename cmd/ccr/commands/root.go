// Package commands implements CLI command handlers for ccr.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/internal/config"
	"github.com/aladics/code-change-repr/internal/observability"
	"github.com/aladics/code-change-repr/pkg/version"
)

// App carries the state shared by every ccr subcommand: the loaded
// configuration and the observability providers built from it. It is
// populated by the root command's PersistentPreRunE and torn down by
// Shutdown after Execute returns.
type App struct {
	Config    *config.Config
	Providers observability.Providers
	Metrics   *observability.REDMetrics

	configPath   string
	verbose      bool
	logJSON      bool
	otlpEndpoint string
	metricsAddr  string

	stopMetrics func(ctx context.Context) error
}

// NewRootCommand assembles the ccr command tree and returns it together
// with the App the subcommands share.
func NewRootCommand() (*cobra.Command, *App) {
	app := &App{}

	cmd := &cobra.Command{
		Use:   "ccr",
		Short: "Structural code-change representations from concrete syntax trees",
		Long: `ccr turns method-level code changes into structural representations.

It parses the before and after states of a change into concrete syntax
trees, keeps the root paths unique to each side, and flattens the
resulting change trees into token sequences suitable for corpus and
vocabulary construction.

Commands:
  diff      Diff two source files as change trees
  flatten   Flatten a parse tree into one corpus line
  dataset   Split, sample, and filter change-sample CSV datasets
  corpus    Build corpora and vocabularies from datasets
  config    Show and validate ccr configuration`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default: .ccr.yaml in . or $HOME)")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "debug logging and full trace sampling")
	flags.BoolVar(&app.logJSON, "log-json", false, "JSON log output")
	flags.StringVar(&app.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address (empty = telemetry off)")
	flags.StringVar(&app.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")

	cmd.AddCommand(
		NewDiffCommand(app),
		NewFlattenCommand(app),
		NewDatasetCommand(app),
		NewCorpusCommand(app),
		NewConfigCommand(app),
	)

	return cmd, app
}

// setup loads configuration, applies flag overrides, and initializes
// logging, tracing, and metrics.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()
	if flags.Changed("log-json") {
		cfg.Telemetry.LogJSON = a.logJSON
	}

	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = a.otlpEndpoint
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = a.metricsAddr
	}

	a.Config = cfg

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = modeFor(cmd)
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.LogJSON = cfg.Telemetry.LogJSON
	obsCfg.LogLevel = logLevel(cfg.Telemetry.LogLevel)

	if a.verbose {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return err
	}

	a.Providers = providers
	slog.SetDefault(providers.Logger)

	metrics, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	a.Metrics = metrics

	if cfg.Telemetry.MetricsAddr != "" {
		stop, serveErr := observability.ServeMetrics(cfg.Telemetry.MetricsAddr, providers.Logger)
		if serveErr != nil {
			return serveErr
		}

		a.stopMetrics = stop
	}

	return nil
}

// Shutdown flushes telemetry and stops the metrics endpoint. Safe to
// call when setup never ran (help output, flag errors).
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.stopMetrics != nil {
		errs = append(errs, a.stopMetrics(ctx))
	}

	if a.Providers.Shutdown != nil {
		errs = append(errs, a.Providers.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// modeFor distinguishes the long-running corpus build from interactive
// commands in telemetry attributes.
func modeFor(cmd *cobra.Command) observability.AppMode {
	if strings.HasSuffix(cmd.CommandPath(), "corpus build") {
		return observability.ModeBatch
	}

	return observability.ModeCLI
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/loupe/pkg/cli"
	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/recorder"
	"mercator-hq/loupe/pkg/server"
	"mercator-hq/loupe/pkg/telemetry/health"
	"mercator-hq/loupe/pkg/telemetry/logging"
	"mercator-hq/loupe/pkg/telemetry/metrics"
	"mercator-hq/loupe/pkg/telemetry/summary"
	"mercator-hq/loupe/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	upstream      string
	sink          string
	color         bool
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the recording server",
	Long: `Start the recording server with the specified configuration.

Every request is recorded on arrival and once more on completion or failure.
Without an upstream the server answers with built-in echo routes.

Examples:
  # Start with defaults
  loupe run

  # Record traffic for a local service
  loupe run --upstream http://127.0.0.1:8080 --listen 0.0.0.0:3000

  # Structured log records instead of console blocks
  loupe run --sink log

  # Validate config without starting server
  loupe run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVarP(&runFlags.upstream, "upstream", "u", "", "override upstream URL")
	runCmd.Flags().StringVar(&runFlags.sink, "sink", "", "override record sink (console, log)")
	runCmd.Flags().BoolVar(&runFlags.color, "color", false, "colorize console records")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

// applyRunFlags applies command-line overrides on top of the loaded
// configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.upstream != "" {
		cfg.Upstream.URL = runFlags.upstream
	}
	if runFlags.sink != "" {
		cfg.Recorder.Sink = runFlags.sink
	}
	if cmd != nil && cmd.Flags().Changed("color") {
		cfg.Recorder.Color = runFlags.color
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	applyRunFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg, out, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := a.run(ctx, cmd); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// app holds the components started by the run command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	recorder  *recorder.Recorder
	collector *metrics.Collector
	health    *health.Checker
	summary   *summary.Scheduler
	server    *server.Server
}

// newApp builds the logger, recorder, telemetry and server from cfg.
// Records go to records, process logs to logs.
func newApp(cfg *config.Config, records, logs io.Writer) (*app, error) {
	logCfg := logging.FromConfig(&cfg.Telemetry.Logging)
	logCfg.Writer = logs
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Slog())

	tracing.Install()

	sink, err := recorder.NewSink(cfg.Recorder.Sink, cfg.Recorder.Color, records, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	rec := recorder.New(sink, recorder.OptionsFromConfig(&cfg.Recorder, cfg.Server.TrustProxy)).
		WithObserver(collector).
		WithRedactor(logging.NewRedactor(cfg.Telemetry.Logging.RedactPatterns)).
		WithLogger(logger.Slog())

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)

	srv, err := server.NewServer(cfg, server.Dependencies{
		Recorder: rec,
		Metrics:  collector,
		Health:   checker,
		Version:  versionInfo(),
		Logger:   logger.Slog(),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		recorder:  rec,
		collector: collector,
		health:    checker,
		summary:   summary.NewScheduler(collector, cfg.Recorder.SummarySchedule, logger.Slog()),
		server:    srv,
	}, nil
}

// run starts the summary scheduler and config reload, then serves until
// ctx is cancelled.
func (a *app) run(ctx context.Context, cmd *cobra.Command) error {
	if err := a.summary.Start(ctx); err != nil {
		a.logger.Warn("failed to start summary scheduler", "error", err)
	} else if next := a.summary.NextRun(); next != nil {
		a.logger.Debug("summary scheduler started", "next_run", next)
	}
	defer a.summary.Stop()

	reloadSignals, stopReload := cli.NotifyReload()
	defer stopReload()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadSignals:
				if err := a.reload(cmd); err != nil {
					a.logger.Error("config reload failed", "error", err)
				}
			}
		}
	}()

	if a.cfg.Reload.Enabled && cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, a.cfg.Reload.Debounce, a.logger.Slog())
		if err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer watcher.Stop()
			go func() {
				if err := watcher.Watch(ctx, func() error { return a.reload(cmd) }); err != nil {
					a.logger.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	a.logger.Info("loupe starting",
		"version", Version,
		"listen_address", a.cfg.Server.ListenAddress,
		"upstream", a.cfg.Upstream.URL,
		"recorder_enabled", a.cfg.Recorder.Enabled,
		"sink", a.cfg.Recorder.Sink,
	)

	err := a.server.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reload re-reads the configuration file and applies what can change at
// runtime: recorder options and the log level. Listener, routes and sink
// changes need a restart.
func (a *app) reload(cmd *cobra.Command) error {
	cfg, err := config.ReloadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	a.recorder.Configure(recorder.OptionsFromConfig(&cfg.Recorder, a.cfg.Server.TrustProxy))
	if err := a.logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		return err
	}

	if cfg.Recorder.Sink != a.cfg.Recorder.Sink || cfg.Recorder.Color != a.cfg.Recorder.Color ||
		cfg.Server.ListenAddress != a.cfg.Server.ListenAddress || cfg.Upstream.URL != a.cfg.Upstream.URL {
		a.logger.Warn("sink, listener and upstream changes take effect after restart")
	}

	a.logger.Info("recorder options reloaded",
		"recorder_enabled", cfg.Recorder.Enabled,
		"log_level", cfg.Telemetry.Logging.Level,
	)
	return nil
}

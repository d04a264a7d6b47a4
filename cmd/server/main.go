/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the goal engine. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  serve        HTTP API plus the background evaluation scheduler (default)
  evaluate     Run a single evaluation cycle and print the result as JSON
  suggest      Print a suggested target for a metric and period
  init-config  Write the default configuration file

FLAGS:
  --config   TOML config path (default: goals.toml, missing file = defaults)
  --db       SQLite database path, overrides [database] path
             Use ":memory:" for an in-memory database

STARTUP SEQUENCE:
  1. Load config and build the logger
  2. Open the SQLite store
  3. Register Prometheus collectors
  4. Build the engine, handler, scheduler and router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight cycle)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server serve --config=./goals.toml
  ./server evaluate --db=./data/goals.db
  ./server suggest --metric=sales --period=quarterly

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file format
  - goal/engine.go: Engine operations
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/goal-engine/api"
	"github.com/warp/goal-engine/config"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/logging"
	"github.com/warp/goal-engine/metrics"
	"github.com/warp/goal-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Goal tracking and forecasting engine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "goals.toml", "TOML config path")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the evaluation scheduler",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "evaluate",
			Short: "Run one evaluation cycle and print the result",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEvaluate(cmd.Context(), cmd)
			},
		},
		newSuggestCmd(),
		&cobra.Command{
			Use:   "init-config",
			Short: "Write the default configuration to --config",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
					return err
				}
				if err := config.Save(configPath, config.DefaultConfig()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
				return nil
			},
		},
	)
	return root
}

func newSuggestCmd() *cobra.Command {
	var metric, period string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest a target from the last two months of orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(nil)
			if err != nil {
				return err
			}
			defer app.close()

			m, err := goal.ParseMetricKind(metric)
			if err != nil {
				return err
			}
			p, err := goal.ParsePeriodKind(period)
			if err != nil {
				return err
			}
			s, err := app.engine.Suggest(cmd.Context(), m, p)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", string(goal.MetricOrders), "metric kind (orders, sales)")
	cmd.Flags().StringVar(&period, "period", string(goal.PeriodMonthly), "period kind (daily, weekly, monthly, quarterly)")
	return cmd
}

// =============================================================================
// WIRING
// =============================================================================

type app struct {
	cfg    config.Config
	logger *logrus.Logger
	store  *sqlite.Store
	engine *goal.Engine
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Closing database")
	}
}

// setup loads config and builds the store and engine. reg may be nil.
func setup(reg prometheus.Registerer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	clock := func() time.Time { return time.Now().In(loc) }
	store.SetLocation(loc)
	store.SetClock(clock)
	store.Logger = logging.Component(logger, "store")

	var observer goal.Observer
	if reg != nil {
		observer, err = metrics.NewPrometheusObserver("goal_engine", reg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	n := cfg.Notifications
	engine := goal.NewEngine(goal.EngineConfig{
		Store:  store,
		Orders: store,
		Sink:   store,
		Logger: logging.Component(logger, "engine"),
		Dispatcher: goal.DispatcherConfig{
			Window:           n.Window.Duration,
			DeadlineDays:     n.DeadlineDays,
			OffTrackDays:     n.OffTrackDays,
			OffTrackBelow:    n.OffTrackBelow,
			MilestoneOnce:    n.MilestoneOnce,
			ThrottleWarnings: n.ThrottleWarnings,
		},
		Observer:     observer,
		QueryTimeout: cfg.Scheduler.QueryTimeout.Duration,
		Clock:        clock,
	})

	return &app{cfg: cfg, logger: logger, store: store, engine: engine}, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func runServe(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	a, err := setup(reg)
	if err != nil {
		return err
	}
	defer a.close()

	handler := api.NewHandler(a.store, a.engine, logging.Component(a.logger, "api"))
	handler.Location, _ = a.cfg.Location()

	opts := api.RouterOptions{AllowedOrigins: a.cfg.Server.AllowedOrigins}
	if a.cfg.Server.Metrics {
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	router := api.NewRouter(handler, opts)

	scheduler := api.NewEvaluationScheduler(a.engine, logging.Component(a.logger, "scheduler"))
	scheduler.Interval = a.cfg.Scheduler.Interval.Duration
	scheduler.Enabled = a.cfg.Scheduler.Enabled
	scheduler.Start()

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.WithFields(logrus.Fields{
			"addr": a.cfg.Server.Addr,
			"db":   a.cfg.Database.Path,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		scheduler.Stop()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	a.logger.Info("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("Server stopped")
	return nil
}

func runEvaluate(ctx context.Context, cmd *cobra.Command) error {
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.RunCycle(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

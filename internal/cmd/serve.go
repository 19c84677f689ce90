package cmd

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/config"
	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/breaker"
	"github.com/ledgermate/governor/internal/core/collector"
	"github.com/ledgermate/governor/internal/core/health"
	"github.com/ledgermate/governor/internal/core/resmon"
	"github.com/ledgermate/governor/internal/core/throttle"
	errwrap "github.com/ledgermate/governor/internal/errors"
	"github.com/ledgermate/governor/internal/metrics"
	"github.com/ledgermate/governor/internal/observability"
	"github.com/ledgermate/governor/internal/server"
	"github.com/ledgermate/governor/internal/server/handlers"
	servermw "github.com/ledgermate/governor/internal/server/middleware"
)

var (
	serverPort int
	serverHost string
)

// modeSwitch forwards the resource monitor's decisions to the throttle
// manager and mirrors them into telemetry.
type modeSwitch struct {
	manager *throttle.Manager
}

func (s modeSwitch) EnableDegradedMode() {
	s.manager.EnableDegradedMode()
	metrics.SetDegradedMode(true)
}

func (s modeSwitch) DisableDegradedMode() {
	s.manager.DisableDegradedMode()
	metrics.SetDegradedMode(false)
}

// dependencyFailure classifies errors that should count against a
// dependency's circuit breaker. Programming errors and input problems
// must never open a breaker.
func dependencyFailure(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	if envelope, ok := err.(*gferrors.ErrorEnvelope); ok {
		switch envelope.Code {
		case "EXTERNAL_SERVICE_ERROR", "TIMEOUT", "SERVICE_UNAVAILABLE":
			return true
		}
	}
	return false
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the load governor",
	Long: `Start the load governor with its HTTP reporting surface.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

Shutdown stops the HTTP server, the resource monitor, and the metrics
collector, then flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			return errwrap.NewConfigInvalidError("configuration not loaded")
		}

		if serverHost != "" {
			cfg.Server.Host = serverHost
		}
		if serverPort != 0 {
			cfg.Server.Port = serverPort
		}

		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLogger(appName, logLevel)
		log := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(appName, cfg.Metrics.Port); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		log.Info("Initializing governor",
			zap.String("service", appName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", cfg.Metrics.Port))

		// Metrics collector with background resource sampling.
		coll := collector.New(collector.Config{Logger: log})
		if err := coll.Start(cmd.Context()); err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "metrics collector start failed")
		}

		// Admission control.
		throttleMgr := throttle.NewManager(cfg.Throttle, log)

		// Resource monitor drives degraded mode.
		resMon := resmon.New(cfg.Resources, nil, modeSwitch{manager: throttleMgr}, log)
		if err := resMon.Start(cmd.Context()); err != nil {
			coll.Stop()
			return errwrap.WrapInternal(cmd.Context(), err, "resource monitor start failed")
		}

		// Per-dependency circuit breakers.
		breakerConfigs := make(map[core.Dependency]breaker.Config, len(cfg.Breakers))
		for name, bc := range cfg.Breakers {
			breakerConfigs[core.Dependency(name)] = breaker.Config{
				FailureThreshold: bc.FailureThreshold,
				RecoveryTimeout:  bc.RecoveryTimeout,
			}
		}
		registry := breaker.NewRegistry(breakerConfigs, dependencyFailure, log)

		// Dependency health monitor.
		healthMon := health.NewMonitor(buildProbes(cfg), cfg.Health.CacheTTL, log)

		// Wire the HTTP surface.
		handlers.InitStatus(coll, throttleMgr, registry)
		handlers.InitHealthMonitor(healthMon)

		admission := &servermw.Admission{Manager: throttleMgr}
		srv := server.New(cfg.Server, admission)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Flushing logger...")
			if err := log.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Stop background loops
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Stopping resource monitor and metrics collector...")
			resMon.Stop()
			coll.Stop()
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			log.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: attempting config reload")

			reloaded, err := config.Load(cfgFile)
			if err != nil {
				log.Error("Failed to reload config", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			// Server and metrics settings need a restart; throttle profiles
			// apply on the next mode switch.
			log.Info("Configuration reloaded",
				zap.Int("throttle_per_second", reloaded.Throttle.Normal.PerSecond),
				zap.Int("throttle_per_minute", reloaded.Throttle.Normal.PerMinute))

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			log.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			log.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				log.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

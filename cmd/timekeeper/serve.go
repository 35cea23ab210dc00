package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/timekeeper/internal/api"
	"github.com/goodtune/timekeeper/internal/config"
	"github.com/goodtune/timekeeper/internal/metrics"
	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/goodtune/timekeeper/internal/storage/bolt"
	"github.com/goodtune/timekeeper/internal/storage/memory"
	"github.com/goodtune/timekeeper/internal/storage/redis"
	"github.com/goodtune/timekeeper/internal/storage/sqlite"
	"github.com/goodtune/timekeeper/internal/systemd"
	"github.com/goodtune/timekeeper/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the timekeeper daemon",
	Long:  `Start the tracker, the rollover scheduler, the local HTTP API and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting timekeeper")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize tracker
	trackerCfg, err := trackerConfig(cfg)
	if err != nil {
		return err
	}

	notifier := usage.NotifierFunc(func(n usage.Notification) {
		logger.Warn().
			Str("day", n.Day.String()).
			Str("usage", usage.FormatDuration(n.Usage)).
			Msg(n.Message)
	})

	tracker := usage.NewTracker(store, trackerCfg, usage.RealClock{}, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tracker.Load(ctx); err != nil {
		return fmt.Errorf("failed to load tracker state: %w", err)
	}
	if err := tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}

	// Initialize rollover scheduler
	scheduler := usage.NewRolloverScheduler(tracker, trackerCfg.RolloverCheckInterval, trackerCfg.Location, usage.RealClock{}, logger)
	scheduler.Start()

	// Initialize API server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(apiAddr, tracker, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Initialize metrics server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsEnabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	logger.Info().
		Str("api", apiAddr).
		Bool("metrics", cfg.Server.MetricsEnabled).
		Msg("timekeeper startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	if interval := systemd.WatchdogInterval(); interval > 0 {
		go runWatchdog(ctx, interval, logger)
	}

	// Wait for signals (shutdown or rollover check)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, checking for day rollover")
			if _, err := tracker.CheckRollover(ctx, usage.TriggerPeriodic); err != nil {
				logger.Error().Err(err).Msg("Rollover check failed")
			}
			continue
		}
		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	scheduler.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to save usage on shutdown")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("timekeeper stopped")

	return nil
}

// runWatchdog pings the systemd watchdog until ctx is done.
func runWatchdog(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
		}
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch cfg.Type {
	case "", "bolt":
		store, err = bolt.Open(cfg.Path)
	case "sqlite":
		store, err = sqlite.Open(cfg.Path)
	case "redis":
		store, err = redis.Open(cfg.Redis)
	case "memory":
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	cached, err := storage.NewCachedStore(store, cfg.HistoryCacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}

// trackerConfig converts validated configuration into tracker settings.
func trackerConfig(cfg *config.Config) (usage.Config, error) {
	mode, err := usage.ParseMode(cfg.Tracking.AccumulationMode)
	if err != nil {
		return usage.Config{}, err
	}

	location, err := time.LoadLocation(cfg.Tracking.TimeZone)
	if err != nil {
		return usage.Config{}, fmt.Errorf("invalid time zone %q: %w", cfg.Tracking.TimeZone, err)
	}

	return usage.Config{
		TickInterval:          parseDuration(cfg.Tracking.TickInterval, usage.DefaultTickInterval),
		IdleThreshold:         parseDuration(cfg.Tracking.IdleThreshold, usage.DefaultIdleThreshold),
		RolloverCheckInterval: parseDuration(cfg.Tracking.RolloverCheckInterval, usage.DefaultRolloverCheckInterval),
		NotificationTTL:       parseDuration(cfg.Tracking.NotificationTTL, 0),
		Mode:                  mode,
		Goal: usage.GoalPolicy{
			Min: parseDuration(cfg.Goal.Min, usage.DefaultMinGoal),
			Max: parseDuration(cfg.Goal.Max, usage.DefaultMaxGoal),
		},
		DefaultGoal: parseDuration(cfg.Goal.Default, usage.DefaultGoal),
		ClampOnLoad: cfg.Goal.ClampOnLoad,
		Location:    location,
	}, nil
}

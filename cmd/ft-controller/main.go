package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MS-092/DS-RM-FP/internal/api"
	"github.com/MS-092/DS-RM-FP/internal/cache"
	"github.com/MS-092/DS-RM-FP/internal/config"
	"github.com/MS-092/DS-RM-FP/internal/controller"
	"github.com/MS-092/DS-RM-FP/internal/experiment"
	"github.com/MS-092/DS-RM-FP/internal/faults"
	"github.com/MS-092/DS-RM-FP/internal/metrics"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/poller"
	"github.com/MS-092/DS-RM-FP/internal/presets"
	"github.com/MS-092/DS-RM-FP/internal/repo"
	"github.com/MS-092/DS-RM-FP/internal/services"
	"github.com/MS-092/DS-RM-FP/internal/store"
	"github.com/MS-092/DS-RM-FP/internal/tracing"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting ft-controller",
		slog.String("address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Setup(cfg.Tracing.Enabled)
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	cacheProvider := newCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	history, err := newHistoryStore(cfg.History)
	if err != nil {
		logger.Error("failed to open history store", slog.String("engine", cfg.History.Engine), slog.Any("error", err))
		os.Exit(1)
	}
	defer history.Close()

	catalog, err := presets.Load(cfg.Presets.Path, logger)
	if err != nil {
		logger.Error("failed to load presets", slog.String("path", cfg.Presets.Path), slog.Any("error", err))
		os.Exit(1)
	}

	initialStrategy, err := models.ParseStrategy(cfg.Experiment.Strategy)
	if err != nil {
		logger.Error("invalid experiment.strategy", slog.Any("error", err))
		os.Exit(1)
	}

	backend := repo.NewBackendClient(repo.Options{
		BaseURL: cfg.Backend.BaseURL,
		Paths: repo.Paths{
			Health:          cfg.Backend.HealthPath,
			Status:          cfg.Backend.StatusPath,
			RunExperiment:   cfg.Backend.RunExperimentPath,
			SimulateFailure: cfg.Backend.SimulateFailurePath,
			Recover:         cfg.Backend.RecoverPath,
			Configure:       cfg.Backend.ConfigurePath,
			Presets:         cfg.Backend.PresetsPath,
		},
		PollTimeout:       cfg.Backend.PollTimeout,
		ExperimentTimeout: cfg.Backend.ExperimentTimeout,
		FaultTimeout:      cfg.Backend.FaultTimeout,
		Cache:             cacheProvider,
		PresetsTTL:        cfg.Cache.PresetsTTL,
		Logger:            logger,
	})

	statusPoller := poller.New(backend, poller.Options{Timeout: cfg.Backend.PollTimeout, Logger: logger})
	runner := experiment.NewRunner(backend, statusPoller, experiment.Options{Timeout: cfg.Backend.ExperimentTimeout, Logger: logger})
	injector := faults.NewInjector(backend, statusPoller, logger)

	ctrl := controller.New(controller.Deps{
		Poller:   statusPoller,
		Runner:   runner,
		Injector: injector,
		Backend:  backend,
		History:  history,
		Presets:  catalog,
	}, controller.Options{
		PollInterval: cfg.Poller.Interval,
		InitialDraft: models.ConfigurationDraft{
			Strategy:                  initialStrategy,
			CheckpointIntervalSeconds: cfg.Experiment.CheckpointIntervalSeconds,
			ReplicationFactor:         cfg.Experiment.ReplicationFactor,
			WorkloadSize:              cfg.Experiment.WorkloadSize,
		},
		MaxRuns: cfg.History.MaxRuns,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(ctx); err != nil {
		logger.Error("failed to start controller", slog.Any("error", err))
		os.Exit(1)
	}

	service := services.NewControllerService(logger, ctrl)

	server, err := api.NewServer(cfg.Server, service)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddress != "" {
		httpServer = &http.Server{
			Addr:         cfg.Server.HTTPAddress,
			Handler:      api.NewRESTHandler(service, logger).Router(promhttp.Handler()),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if !server.Shutdown(shutdownCtx) {
		logger.Warn("gRPC drain timed out, in-flight calls were cancelled")
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}

	ctrl.Stop()
	logger.Info("ft-controller stopped")
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Addr == "" {
		logger.Info("cache enabled without redis address, using in-process cache")
		return cache.NewMemoryProvider()
	}
	provider, err := cache.NewRedisProvider(cache.RedisConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("redis cache unavailable, using in-process cache", slog.Any("error", err))
		return cache.NewMemoryProvider()
	}
	return provider
}

func newHistoryStore(cfg config.HistoryConfig) (store.HistoryStore, error) {
	if cfg.Engine == "badger" {
		return store.NewBadgerStore(store.BadgerConfig{DataPath: cfg.Path, MaxRuns: cfg.MaxRuns})
	}
	return store.NewMemoryStore(cfg.MaxRuns), nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/productfeed/api/routes"
	"github.com/angelmondragon/productfeed/internal/catalog"
	"github.com/angelmondragon/productfeed/internal/collectioncache"
	"github.com/angelmondragon/productfeed/internal/sessions"
	"github.com/angelmondragon/productfeed/pkg/config"
	"github.com/angelmondragon/productfeed/pkg/connectivity"
	"github.com/angelmondragon/productfeed/pkg/instance"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
	"github.com/angelmondragon/productfeed/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "productfeed-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "productfeed-api",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	catalogMetrics := metrics.NewCatalogMetrics(reg)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(runCtx, cfg.Redis, logg)
		if err != nil {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
	}

	transport, err := buildTransport(cfg, logg, catalogMetrics, redisClient)
	if err != nil {
		logg.Error(runCtx, "failed to build products transport", err)
		os.Exit(1)
	}

	var check catalog.Connectivity = connectivity.AlwaysOnline{}
	if cfg.Catalog.CheckAddr != "" {
		check = connectivity.NewDialCheck(cfg.Catalog.CheckAddr, cfg.Catalog.CheckTimeout)
	}

	registry, err := sessions.NewRegistry(sessions.Params{
		Logger:        logg,
		Metrics:       catalogMetrics,
		IdleTTL:       cfg.Sessions.IdleTTL,
		MaxSessions:   cfg.Sessions.MaxSessions,
		SweepInterval: cfg.Sessions.SweepInterval,
		Factory: func() (*catalog.Controller, error) {
			return catalog.NewController(catalog.ControllerParams{
				Transport:    transport,
				Logger:       logg,
				Metrics:      catalogMetrics,
				Connectivity: check,
				PageTimeout:  cfg.Catalog.PageTimeout,
				FullTimeout:  cfg.Catalog.FullTimeout,
				MaxRetries:   cfg.Catalog.MaxRetries,
				RetryBackoff: cfg.Catalog.RetryBackoff,
			})
		},
	})
	if err != nil {
		logg.Error(runCtx, "failed to create session registry", err)
		os.Exit(1)
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := registry.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "session janitor stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"upstream": cfg.Catalog.BaseURL,
		"redis":    redisClient != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, registry, redisClient, reg),
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}
	stop()

	if err := shutdown(ctx, cfg, server, registry, redisClient); err != nil {
		logg.Error(ctx, "shutdown completed with errors", err)
		exitCode = 1
	}
	<-sweepDone
	logg.Info(ctx, "api server stopped")
	os.Exit(exitCode)
}

// buildTransport returns the products client, decorated with the shared
// collection cache when Redis is available.
func buildTransport(cfg *config.Config, logg *logger.Logger, m *metrics.CatalogMetrics, redisClient *redis.Client) (catalog.Transport, error) {
	client, err := productsapi.NewClient(cfg.Catalog.BaseURL, productsapi.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	if redisClient == nil {
		return client, nil
	}

	source := cfg.Catalog.BaseURL
	if u, err := url.Parse(cfg.Catalog.BaseURL); err == nil && u.Host != "" {
		source = u.Host
	}
	return collectioncache.New(collectioncache.Params{
		Upstream: client,
		Store:    redisClient,
		Logger:   logg,
		Metrics:  m,
		Source:   source,
		TTL:      cfg.Redis.SnapshotTTL,
	})
}

func shutdown(ctx context.Context, cfg *config.Config, server *http.Server, registry *sessions.Registry, redisClient *redis.Client) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	var errs error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, err)
	}
	registry.CloseAll()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Command erpcore runs the multi-tenant ERP integration core with its ops HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/infrastructure/cache"
	"github.com/erp/erpcore/internal/infrastructure/config"
	"github.com/erp/erpcore/internal/infrastructure/erp"
	"github.com/erp/erpcore/internal/infrastructure/logger"
	"github.com/erp/erpcore/internal/interfaces/http/handler"
	"github.com/erp/erpcore/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("erpcore stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	_ = logger.Sync(log)
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := checkFallback(cfg.Fallback); err != nil {
		return err
	}

	tel, err := newTelemetry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tel.shutdown(context.Background()); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = tel.bridge(log, cfg.Telemetry.LogsExportLevel)

	log.Info("Starting erpcore",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Int("tenants", len(cfg.Tenants)),
	)

	store, err := cache.NewCapabilityStoreFactory(cfg.Redis,
		cache.WithLogger(log.Named("redis")),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("capability store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Capability store close failed", zap.Error(err))
		}
	}()

	settings := erp.NewStaticSettings(cfg.Tenants)
	factory := erp.NewProviderFactory(factoryConfig(cfg), settings,
		erp.WithFactoryLogger(log.Named("erp")),
		erp.WithFactoryMetrics(tel.metrics),
		erp.WithCapabilityStore(store),
	)
	defer func() {
		disposeCtx, cancel := context.WithTimeout(context.Background(), cfg.Actor.DisposeTimeout)
		defer cancel()
		if err := factory.Close(disposeCtx); err != nil {
			log.Warn("Provider factory close failed", zap.Error(err))
		}
	}()
	for _, id := range settings.TenantIDs() {
		if err := factory.ValidateType(settings[id].ERPType); err != nil {
			return fmt.Errorf("tenant %s: %w", id, err)
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        cfg.Telemetry.Enabled,
		RequestTimeout: cfg.HTTP.WriteTimeout,
	}, log.Named("http"))
	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(cfg.App.Name, cfg.App.Version))
	r.Register(handler.NewIntegrationHandler(factory))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

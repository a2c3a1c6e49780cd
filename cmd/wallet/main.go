package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wallet/internal/backend"
	"wallet/internal/cache"
	"wallet/internal/cli"
	apphttp "wallet/internal/http"
	"wallet/internal/log"
	"wallet/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	dataCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	sessCfg, err := backend.SessionFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid session configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	factory := backend.NewFactory(logger)
	data, err := factory.CreateBackend(startCtx, dataCfg)
	if err != nil {
		cancelStart()
		logger.Error("Failed to create data backend", log.FieldError, err, "backend", dataCfg.Type)
		os.Exit(1)
	}
	sessions, err := factory.CreateSessions(startCtx, sessCfg, data)
	cancelStart()
	if err != nil {
		_ = data.Cleanup()
		logger.Error("Failed to create session backend", log.FieldError, err, "backend", sessCfg.Backend)
		os.Exit(1)
	}

	reports := services.NewReportService(data.Entries, cfg.ReportCacheTTL)
	data.Entries.OnAppend(reports.Invalidate)

	caches := cache.NewManager()
	caches.Register(reports.Cache())
	if sessions.Revocations != nil {
		caches.Register(sessions.Revocations)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Entries:  data.Entries,
		Reports:  reports,
		Sessions: sessions.Collaborator,
		Users:    sessions.Users,
		Ready:    data.Ping,
		Demo: apphttp.DemoAccount{
			Email:    cfg.DemoEmail,
			Password: cfg.DemoPassword,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if sessions.Cleanup != nil {
			if err := sessions.Cleanup(); err != nil {
				logger.Error("Failed to close session backend", log.FieldError, err)
			}
		}
		if err := data.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", log.FieldError, err)
		}
	})

	logger.Info("Starting wallet server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"sessions", cfg.SessionBackend,
		"sync", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}


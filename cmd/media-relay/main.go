package main

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/api"
	"github.com/NikitaDmitryuk/media-relay/internal/config"
	"github.com/NikitaDmitryuk/media-relay/internal/factories"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/notifier"
	"github.com/NikitaDmitryuk/media-relay/internal/ratelimit"
	"github.com/NikitaDmitryuk/media-relay/internal/service"
	"github.com/NikitaDmitryuk/media-relay/internal/shutdown"
	"github.com/NikitaDmitryuk/media-relay/internal/transfer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	limiterIdleTTL       = 30 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(cfg.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}).Info("Starting media-relay")

	provider, err := factories.NewProvider(cfg)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize media provider")
	}

	hub := notifier.NewHub()
	hook := notifier.Multi(notifier.LogHook{}, hub)
	transfers := transfer.NewManager(provider, hook, nil)
	svc := service.NewMediaService(provider, transfers, hook, cfg.CookiesPath)

	limiter := ratelimit.NewKeyedLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, limiterIdleTTL)
	stopSweep := make(chan struct{})
	go limiter.Run(limiterSweepInterval, stopSweep)

	server := api.NewServer(svc, hub, api.Options{
		ListenAddr: cfg.ListenAddr,
		APIKey:     cfg.APIKey,
		Limiter:    limiter,
	})

	shutdownManager := shutdown.NewManager(cfg.ShutdownTimeout)
	shutdownManager.Register(transfers)
	shutdownManager.Register(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logutils.Log.WithError(serveErr).Error("API server stopped unexpectedly")
			cancel()
		}
	}()

	logutils.Log.WithField("addr", cfg.ListenAddr).Info("media-relay started successfully")

	shutdownErr := shutdownManager.WaitForShutdown(ctx)
	close(stopSweep)
	if shutdownErr != nil {
		logutils.Log.WithError(shutdownErr).Error("Shutdown finished with errors")
		return
	}
	logutils.Log.Info("media-relay shutdown complete")
}

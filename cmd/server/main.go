package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/codec"
	_ "github.com/JonMunkholm/cpleditor/internal/codec/binlist" // Register PES presets
	"github.com/JonMunkholm/cpleditor/internal/config"
	"github.com/JonMunkholm/cpleditor/internal/logging"
	"github.com/JonMunkholm/cpleditor/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"audit_driver", cfg.Audit.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	store, err := audit.Open(ctx, cfg.Audit)
	if err != nil {
		slog.Error("failed to open audit store", "driver", cfg.Audit.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	presets := codec.Presets()
	slog.Info("presets registered", "count", len(presets))
	for _, p := range presets {
		slog.Debug("preset", "key", p.Key, "label", p.Label)
	}

	server := web.NewServer(cfg, store)

	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go audit.RunPurger(jobCtx, store, audit.PurgeConfig{
		Retention: cfg.Audit.Retention(),
		Interval:  cfg.Audit.PurgeInterval,
	})
	go server.Sessions().RunJanitor(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Shutdown also waits for in-flight decodes.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

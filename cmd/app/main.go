package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	"exchange_pro/internal/api"
	"exchange_pro/internal/app"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Background Asset Sync
	go bootstrap.SyncAssets(ctx)

	// 4. Poller, default chart and AI Council
	bootstrap.Start(ctx)

	// 5. HTTP API
	cfg := bootstrap.Config
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	h := server.New(server.WithHostPorts(addr))
	api.RegisterRoutes(h, api.Deps{
		Prices:    bootstrap.Prices,
		Chart:     bootstrap.Chart,
		Alerts:    bootstrap.Alerts,
		Watchlist: bootstrap.Watchlist,
		News:      bootstrap.News,
		Council:   bootstrap.Council,
		Control:   bootstrap,
		Metrics:   bootstrap.Metrics,
	})

	go func() {
		if err := h.Run(); err != nil {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()
	slog.InfoContext(ctx, "✨ Exchange Pro fully operational. Press Ctrl+C to exit.", slog.String("addr", addr))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
}

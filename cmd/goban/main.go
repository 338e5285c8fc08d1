package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goban-dev/goban/internal/config"
	"github.com/goban-dev/goban/internal/logger"
	"github.com/goban-dev/goban/internal/router"
	"github.com/goban-dev/goban/internal/setup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Error("load config", "error", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.New(ctx, cfg)
	if err != nil {
		logger.Log.Error("setup", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	server := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("shutdown", "error", err)
		}
	}()

	logger.Log.Info("server started", "addr", cfg.BindAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Error("server", "error", err)
		os.Exit(1)
	}
	logger.Log.Info("server stopped")
}

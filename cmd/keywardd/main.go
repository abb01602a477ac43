package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"keyward/internal/config"
	"keyward/internal/infra/db"
	httpinfra "keyward/internal/infra/http"
	"keyward/internal/infra/logging"

	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}

	srv, err := httpinfra.NewServer(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to init server", zap.Error(err))
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("close server", zap.Error(err))
		}
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

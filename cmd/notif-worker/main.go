package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"revline/internal/config"
	"revline/internal/di"
	"revline/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment")
	}

	cfg := config.Load()
	closeLog, err := logger.Setup(cfg.Logging, "notif-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.Notification.UseQueue {
		log.Warn().Msg("NOTIF_USE_QUEUE is off, chat-svc delivers in process and this worker will sit idle")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := di.InitializeWorker(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notification worker")
	}
	defer cleanup()

	log.Info().
		Str("queue", cfg.Notification.Queue).
		Int("concurrency", cfg.Notification.Workers).
		Strs("observers", app.Manager.Observers()).
		Msg("notification worker started")

	if err := app.Server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("notification worker stopped")
		return
	}
	log.Info().Msg("notification worker stopped")
}

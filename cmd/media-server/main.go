package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"revline/internal/common"
	"revline/internal/config"
	"revline/internal/di"
	"revline/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment")
	}

	cfg := config.Load()
	closeLog, err := logger.Setup(cfg.Logging, "media-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := di.InitializeMedia(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media server")
	}
	defer cleanup()

	server := &http.Server{
		Addr:              ":" + cfg.Server.MediaPort,
		Handler:           common.CORS(common.Logging(app.Server)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.MediaPort).
			Str("bucket", cfg.Storage.Bucket).
			Msg("media server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("media server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("media shutdown incomplete")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"revline/internal/common"
	"revline/internal/config"
	"revline/internal/di"
	"revline/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment")
	}

	cfg := config.Load()
	closeLog, err := logger.Setup(cfg.Logging, "chat-svc")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Info().
		Str("env", cfg.Server.Environment).
		Str("db_driver", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Msg("starting chat service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := di.InitializeChatApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat service")
	}
	defer cleanup()

	invalidator, err := app.Cache.StartInvalidator(ctx, app.Feed, app.ChatService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start cache invalidator")
	}
	defer invalidator.Close()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(common.UnaryLoggingInterceptor),
		grpc.ChainStreamInterceptor(common.StreamLoggingInterceptor),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Server.GRPCPort).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("port", cfg.Server.GRPCPort).Msg("grpc health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server stopped")
			stop()
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("chat service listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	log.Info().Msg("shutting down chat service")
	healthServer.Shutdown()

	// Hijacked websocket connections are not tracked by Shutdown.
	app.Gateway.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	grpcServer.GracefulStop()
	log.Info().Msg("chat service stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"meeting-sidekick/internal/api"
	"meeting-sidekick/internal/app"
	"meeting-sidekick/internal/config"
	"meeting-sidekick/internal/observability"
	"meeting-sidekick/internal/observability/logging"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{
		Level:   cfg.Observability.LogLevel,
		Console: cfg.Service.Env == "dev",
		Service: cfg.Service.Name,
	})

	// Jobs outlive the requests that start them; this context bounds them
	// to the process lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	monitoring := observability.NewServer(":" + cfg.Observability.MetricsPort)
	monitoring.Start()

	handler := api.NewHandler(application.Store, application.Chunks, application.Finalizer, application.Orchestrator)
	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := monitoring.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Monitoring shutdown error")
	}
	cancel()
	application.Shutdown()
}

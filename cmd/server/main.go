package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"quizroom/internal/app"
	"quizroom/internal/config"
	"quizroom/internal/domain"
	"quizroom/internal/publish"
	httpTransport "quizroom/internal/transport/http"
	"quizroom/internal/transport/ws"
)

// recapPublisher is the event feed as seen by the server
type recapPublisher interface {
	app.RecapPublisher
	Close() error
}

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg.Logging, os.Stdout)

	logger.Info().
		Str("env", cfg.Server.Env).
		Str("port", cfg.Server.Port).
		Msg("starting quizroom server")

	// Recap event feed
	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	// Create room registry
	registry := app.NewRegistry(app.RegistryOptions{
		RoomCodeLength: cfg.Game.RoomCodeLength,
		IdleTimeout:    cfg.Game.RoomIdleTimeout,
		Session: app.SessionOptions{
			GracePeriod:    cfg.Game.GracePeriod,
			Publisher:      publisher,
			PublishTimeout: cfg.Events.PublishTimeout,
		},
	}, logger)
	defer registry.Close()

	// Create HTTP server
	server := httpTransport.NewServer(cfg, registry, ws.Options{
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		DefaultSettings:       roomDefaults(cfg.Game),
		BoardUpdatesPerSecond: cfg.Game.BoardUpdatesPerSecond,
		MessagesPerSecond:     cfg.Game.MessagesPerSecond,
	}, logger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// newPublisher connects the recap feed, falling back to a no-op feed when NATS is unset or down
func newPublisher(cfg config.EventsConfig, logger zerolog.Logger) recapPublisher {
	if cfg.NatsURL == "" {
		logger.Info().Msg("no NATS url configured, recap events disabled")
		return publish.NopPublisher{}
	}

	jsCfg := publish.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NatsURL
	jsCfg.StreamName = cfg.StreamName
	jsCfg.SubjectPrefix = cfg.SubjectPrefix
	if jsCfg.URL == nats.DefaultURL {
		logger.Debug().Msg("using local NATS server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := publish.NewJetStreamPublisher(ctx, jsCfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.NatsURL).Msg("failed to connect event feed, recap events disabled")
		return publish.NopPublisher{}
	}
	return p
}

// roomDefaults are the settings a room gets when its creator leaves them out
func roomDefaults(cfg config.GameConfig) domain.RoomSettings {
	settings := domain.DefaultRoomSettings()
	if cfg.DefaultTimeLimitSeconds > 0 {
		settings.TimeLimit = domain.LimitSeconds(cfg.DefaultTimeLimitSeconds)
	} else {
		settings.TimeLimit = domain.Untimed()
	}
	if cfg.StartingLives > 0 {
		settings.StartingLives = cfg.StartingLives
	}
	if cfg.MaxPlayers > 0 {
		settings.MaxPlayers = cfg.MaxPlayers
	}
	return settings
}

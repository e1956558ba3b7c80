package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"quizroom/internal/config"
	"quizroom/internal/domain"
	"quizroom/internal/publish"
)

func TestRoomDefaults(t *testing.T) {
	settings := roomDefaults(config.GameConfig{DefaultTimeLimitSeconds: 45, StartingLives: 5, MaxPlayers: 12})
	assert.Equal(t, domain.LimitSeconds(45), settings.TimeLimit)
	assert.Equal(t, 5, settings.StartingLives)
	assert.Equal(t, 12, settings.MaxPlayers)

	untimed := roomDefaults(config.GameConfig{})
	assert.True(t, untimed.TimeLimit.IsUntimed())
	assert.Equal(t, domain.DefaultRoomSettings().StartingLives, untimed.StartingLives)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	fallback := newLogger(config.LoggingConfig{Level: "nonsense"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, fallback.GetLevel())
}

func TestNewPublisher_NoURL(t *testing.T) {
	p := newPublisher(config.EventsConfig{}, zerolog.Nop())
	assert.IsType(t, publish.NopPublisher{}, p)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Game    GameConfig    `yaml:"game"`
	Logging LoggingConfig `yaml:"logging"`
	Events  EventsConfig  `yaml:"events"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `yaml:"port"`
	Host           string   `yaml:"host"`
	Env            string   `yaml:"env"` // "development" or "production"
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GameConfig holds room-related configuration
type GameConfig struct {
	DefaultTimeLimitSeconds int           `yaml:"default_time_limit_seconds"`
	StartingLives           int           `yaml:"starting_lives"`
	MaxPlayers              int           `yaml:"max_players"`
	GracePeriod             time.Duration `yaml:"grace_period"`
	RoomCodeLength          int           `yaml:"room_code_length"`
	RoomIdleTimeout         time.Duration `yaml:"room_idle_timeout"`
	BoardUpdatesPerSecond   float64       `yaml:"board_updates_per_second"`
	MessagesPerSecond       float64       `yaml:"messages_per_second"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// EventsConfig holds the recap event feed configuration. An empty URL disables the feed.
type EventsConfig struct {
	NatsURL        string        `yaml:"nats_url"`
	StreamName     string        `yaml:"stream_name"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			Env:            "development",
			AllowedOrigins: []string{"*"},
		},
		Game: GameConfig{
			DefaultTimeLimitSeconds: 30,
			StartingLives:           3,
			MaxPlayers:              50,
			GracePeriod:             time.Second,
			RoomCodeLength:          4,
			RoomIdleTimeout:         30 * time.Minute,
			BoardUpdatesPerSecond:   20,
			MessagesPerSecond:       10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Events: EventsConfig{
			StreamName:     "QUIZROOM_EVENTS",
			SubjectPrefix:  "quizroom.events",
			PublishTimeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Game.DefaultTimeLimitSeconds = getEnvInt("DEFAULT_TIME_LIMIT_SECONDS", c.Game.DefaultTimeLimitSeconds)
	c.Game.StartingLives = getEnvInt("STARTING_LIVES", c.Game.StartingLives)
	c.Game.MaxPlayers = getEnvInt("MAX_PLAYERS", c.Game.MaxPlayers)
	c.Game.GracePeriod = getEnvDuration("GRACE_PERIOD", c.Game.GracePeriod)
	c.Game.RoomCodeLength = getEnvInt("ROOM_CODE_LENGTH", c.Game.RoomCodeLength)
	c.Game.RoomIdleTimeout = getEnvDuration("ROOM_IDLE_TIMEOUT", c.Game.RoomIdleTimeout)
	c.Game.BoardUpdatesPerSecond = getEnvFloat("BOARD_UPDATES_PER_SECOND", c.Game.BoardUpdatesPerSecond)
	c.Game.MessagesPerSecond = getEnvFloat("MESSAGES_PER_SECOND", c.Game.MessagesPerSecond)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Events.NatsURL = getEnv("NATS_URL", c.Events.NatsURL)
	c.Events.StreamName = getEnv("NATS_STREAM", c.Events.StreamName)
	c.Events.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Events.SubjectPrefix)
	c.Events.PublishTimeout = getEnvDuration("NATS_PUBLISH_TIMEOUT", c.Events.PublishTimeout)
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Game.RoomCodeLength < 3 {
		errs = append(errs, fmt.Errorf("room code length must be at least 3, got %d", c.Game.RoomCodeLength))
	}
	if c.Game.StartingLives < 1 {
		errs = append(errs, fmt.Errorf("starting lives must be positive, got %d", c.Game.StartingLives))
	}
	if c.Game.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("grace period must not be negative, got %s", c.Game.GracePeriod))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.Events.NatsURL != "" && c.Events.SubjectPrefix == "" {
		errs = append(errs, errors.New("subject prefix is required when a NATS url is set"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package config loads the castaways configuration: defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/castaways/internal/brain"
	"github.com/talgya/castaways/internal/engine"
	"github.com/talgya/castaways/internal/textutil"
)

// Environment variables read by ApplyEnv.
const (
	EnvAdminKey     = "CASTAWAYS_ADMIN_KEY"
	EnvDBDSN        = "CASTAWAYS_DB_DSN"
	EnvAddr         = "CASTAWAYS_ADDR"
	EnvLogLevel     = "CASTAWAYS_LOG_LEVEL"
	EnvCORSOrigins  = "CORS_ORIGINS"
	EnvWeatherKey   = "OPENWEATHER_API_KEY"
	EnvRandomOrgKey = "RANDOM_ORG_API_KEY"
)

// ErrInvalid is returned for a configuration that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration of the castaways binary.
type Config struct {
	Game     engine.Params     `yaml:"game"`
	Training brain.TrainConfig `yaml:"training"`
	Server   Server            `yaml:"server"`
	Storage  Storage           `yaml:"storage"`
	Weather  Weather           `yaml:"weather"`
	Entropy  Entropy           `yaml:"entropy"`
	LogLevel string            `yaml:"log_level"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string        `yaml:"addr"`
	StreamAddr     string        `yaml:"stream_addr"` // Websocket listener; empty disables /stream
	AdminKey       string        `yaml:"admin_key"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RateLimit      float64       `yaml:"rate_limit"` // Requests per second per client on /train
	RateBurst      int           `yaml:"rate_burst"`
	StreamInterval time.Duration `yaml:"stream_interval"` // Day pacing for /stream
	MaxGames       int           `yaml:"max_games"`       // Ceiling for /test
}

// Storage configures run history and policy storage.
type Storage struct {
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"` // When set, runs go to Postgres instead of SQLite
	JournalDir  string `yaml:"journal_dir"`  // Empty disables the day journal
}

// Weather configures the live weather rule.
type Weather struct {
	APIKey   string `yaml:"api_key"`
	Location string `yaml:"location"`
}

// Entropy configures seed generation.
type Entropy struct {
	RandomOrgKey string `yaml:"random_org_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Game:     engine.DefaultParams(),
		Training: brain.DefaultTrainConfig(),
		Server: Server{
			Addr:           ":8080",
			StreamAddr:     ":8081",
			CORSOrigins:    []string{"http://localhost:5173", "http://localhost:3000"},
			RateLimit:      1.0 / 60,
			RateBurst:      2,
			StreamInterval: 500 * time.Millisecond,
			MaxGames:       5000,
		},
		Storage: Storage{
			SQLitePath: "data/castaways.db",
		},
		LogLevel: "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAdminKey); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv(EnvDBDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvCORSOrigins); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := getenv(EnvWeatherKey); v != "" {
		c.Weather.APIKey = v
	}
	if v := getenv(EnvRandomOrgKey); v != "" {
		c.Entropy.RandomOrgKey = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("%w: game: %w", ErrInvalid, err)
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("%w: training: %w", ErrInvalid, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("%w: server rate limit must be positive", ErrInvalid)
	}
	if c.Server.MaxGames < 1 {
		return fmt.Errorf("%w: server max_games must be at least 1", ErrInvalid)
	}
	return nil
}

var levelNames = []string{"debug", "info", "warn", "error"}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.New(textutil.Unknown("log level", name, levelNames))
}

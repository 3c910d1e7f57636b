package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/weather"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castaways.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game:
  players: 8
  food_weather: storm
  default_weather: rainy
  fetch_factors:
    water: [2, 4]
  to_leave:
    wood: 9
training:
  iterations: 12
server:
  stream_interval: 250ms
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Game.Players)
	assert.Equal(t, weather.Storm, cfg.Game.FoodWeather)
	assert.Equal(t, weather.Raining, cfg.Game.DefaultWeather)
	assert.Equal(t, []int{2, 4}, cfg.Game.FetchFactors.Water)
	assert.Equal(t, []int{1, 2, 3}, cfg.Game.FetchFactors.Food)
	assert.Equal(t, 9, cfg.Game.ToLeave.Wood)
	assert.Equal(t, 0.5, cfg.Game.WreckProbability)
	assert.Equal(t, 12, cfg.Training.Iterations)
	assert.Equal(t, 0.99, cfg.Training.Discount)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.StreamInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_BadWeatherName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  default_weather: strom\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAdminKey:     "secret",
		EnvDBDSN:        "postgres://x",
		EnvCORSOrigins:  "https://a.example, https://b.example,",
		EnvWeatherKey:   "owm",
		EnvRandomOrgKey: "rnd",
		EnvLogLevel:     "warn",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "secret", cfg.Server.AdminKey)
	assert.Equal(t, "postgres://x", cfg.Storage.PostgresDSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "owm", cfg.Weather.APIKey)
	assert.Equal(t, "rnd", cfg.Entropy.RandomOrgKey)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("wran")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "warn"`)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Game.Players = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

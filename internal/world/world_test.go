package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/weather"
)

func newTestWorld(t *testing.T, cfg Config, seed int64) *World {
	t.Helper()
	w, err := New(cfg, weather.Fixed{Kind: cfg.InitialWeather}, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return w
}

func TestFetch_BoundsAndExactDecrement(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		cfg := DefaultConfig()
		cfg.Initial = economy.Stock{rng.Intn(20), rng.Intn(20), rng.Intn(20)}
		cfg.InitialWeather = weather.Kinds[rng.Intn(weather.NumKinds)]
		w := newTestWorld(t, cfg, int64(i))

		r := economy.Resources[rng.Intn(economy.NumResources)]
		requested := 1 + rng.Intn(4)
		before := w.Stock()[r]

		res, err := w.Fetch(r, requested)
		require.NoError(t, err)

		maxFactor := 3
		if cfg.InitialWeather.Boosts(r, cfg.FoodWeather) {
			maxFactor = 6
		}
		assert.GreaterOrEqual(t, res.Amount, 0)
		assert.LessOrEqual(t, res.Amount, before)
		assert.LessOrEqual(t, res.Amount, requested*maxFactor)
		assert.Equal(t, before-res.Amount, w.Stock()[r])
		assert.Equal(t, before == 0, res.Depleted)
	}
}

func TestFetch_Depleted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Initial = economy.Stock{0, 10, 10}
	w := newTestWorld(t, cfg, 1)

	res, err := w.Fetch(economy.Water, 2)
	require.NoError(t, err)
	assert.True(t, res.Depleted)
	assert.Zero(t, res.Amount)
	assert.Equal(t, economy.Stock{0, 10, 10}, w.Stock())
}

func TestFetch_CapsToRemaining(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Initial = economy.Stock{4, 0, 0}
	cfg.Factors[economy.Water] = []int{3}
	w := newTestWorld(t, cfg, 1)

	res, err := w.Fetch(economy.Water, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Amount)
	assert.Equal(t, 3, res.Factor)
	assert.Zero(t, w.Stock()[economy.Water])
}

func TestFetch_WeatherDoublesFactor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Factors[economy.Wood] = []int{2}
	cfg.InitialWeather = weather.Storm
	w := newTestWorld(t, cfg, 1)

	res, err := w.Fetch(economy.Wood, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Factor)
	assert.Equal(t, 12, res.Amount)

	res, err = w.Fetch(economy.Water, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Factor, 3)
}

func TestFetch_InvalidAmount(t *testing.T) {
	w := newTestWorld(t, DefaultConfig(), 1)
	_, err := w.Fetch(economy.Food, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Factors[economy.Food] = nil
	_, err := New(cfg, nil, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Factors[economy.Food] = []int{1, 0}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Initial[economy.Wood] = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestUpdate_AdvancesWeather(t *testing.T) {
	w, err := New(DefaultConfig(), weather.Fixed{Kind: weather.Raining}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, weather.Clear, w.Weather())
	assert.Equal(t, weather.Raining, w.Update(1))
	assert.Equal(t, weather.Raining, w.Snapshot().Weather)
}

// Package world provides the island's shared resource pool and the wreck
// that castaways scavenge for equipment.
package world

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/weather"
)

var (
	// ErrInvalidAmount is returned when a fetch asks for fewer than one unit.
	ErrInvalidAmount = errors.New("fetch amount must be at least 1")
	// ErrInvalidConfig is returned for negative stocks or unusable factor sets.
	ErrInvalidConfig = errors.New("invalid world config")
)

// Config describes the island's starting state.
type Config struct {
	Initial        economy.Stock               // Starting stock per resource
	Factors        [economy.NumResources][]int // Yield multipliers drawn per fetch
	InitialWeather weather.Kind                // Weather before day 1
	FoodWeather    weather.Kind                // Weather that doubles food yield
}

// DefaultConfig returns the standard island: 5000 of everything and
// yield factors {1,2,3} for each resource.
func DefaultConfig() Config {
	return Config{
		Initial: economy.Stock{5000, 5000, 5000},
		Factors: [economy.NumResources][]int{
			{1, 2, 3},
			{1, 2, 3},
			{1, 2, 3},
		},
		InitialWeather: weather.Clear,
		FoodWeather:    weather.Cloudy,
	}
}

// Validate checks stocks and factor sets.
func (c Config) Validate() error {
	for _, r := range economy.Resources {
		if c.Initial[r] < 0 {
			return fmt.Errorf("%w: initial %s is negative", ErrInvalidConfig, r)
		}
		if len(c.Factors[r]) == 0 {
			return fmt.Errorf("%w: no fetch factors for %s", ErrInvalidConfig, r)
		}
		for _, f := range c.Factors[r] {
			if f < 1 {
				return fmt.Errorf("%w: fetch factor %d for %s must be positive", ErrInvalidConfig, f, r)
			}
		}
	}
	if !c.InitialWeather.Valid() || !c.FoodWeather.Valid() {
		return fmt.Errorf("%w: unknown weather", ErrInvalidConfig)
	}
	return nil
}

// World is the pool of raw resources plus the current weather.
type World struct {
	stock       economy.Stock
	initial     economy.Stock
	factors     [economy.NumResources][]int
	weather     weather.Kind
	foodWeather weather.Kind

	rule weather.Rule
	rng  *rand.Rand
}

// New creates a world from cfg. rule advances the weather and rng draws
// yield factors.
func New(cfg Config, rule weather.Rule, rng *rand.Rand) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		stock:       cfg.Initial,
		initial:     cfg.Initial,
		weather:     cfg.InitialWeather,
		foodWeather: cfg.FoodWeather,
		rule:        rule,
		rng:         rng,
	}
	for _, r := range economy.Resources {
		w.factors[r] = append([]int(nil), cfg.Factors[r]...)
	}
	return w, nil
}

// FetchResult is the outcome of one fetch. A depleted resource is an
// ordinary outcome, not an error.
type FetchResult struct {
	Resource  economy.Resource `json:"resource"`
	Requested int              `json:"requested"`
	Factor    int              `json:"factor"`
	Amount    int              `json:"amount"`
	Depleted  bool             `json:"depleted"`
}

// Fetch removes requested × factor units of r from the pool, capped at what
// remains. The factor is drawn uniformly from r's set and doubled when the
// weather favours r.
func (w *World) Fetch(r economy.Resource, requested int) (FetchResult, error) {
	if requested < 1 {
		return FetchResult{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, requested)
	}
	if !r.Valid() {
		return FetchResult{}, fmt.Errorf("fetch: unknown resource %d", r)
	}

	res := FetchResult{Resource: r, Requested: requested}
	if w.stock[r] <= 0 {
		res.Depleted = true
		return res, nil
	}

	factors := w.factors[r]
	res.Factor = factors[w.rng.Intn(len(factors))]
	if w.weather.Boosts(r, w.foodWeather) {
		res.Factor *= 2
	}

	res.Amount = requested * res.Factor
	if res.Amount > w.stock[r] {
		res.Amount = w.stock[r]
	}
	w.stock[r] -= res.Amount
	return res, nil
}

// Update advances the weather to the given day.
func (w *World) Update(day int) weather.Kind {
	if w.rule != nil {
		w.weather = w.rule.Next(day, w.weather)
	}
	return w.weather
}

// Weather returns the current weather.
func (w *World) Weather() weather.Kind { return w.weather }

// Stock returns the remaining pool.
func (w *World) Stock() economy.Stock { return w.stock }

// Initial returns the pool the world started with.
func (w *World) Initial() economy.Stock { return w.initial }

// Snapshot is the serialisable state of a World.
type Snapshot struct {
	Water   int          `json:"water"`
	Wood    int          `json:"wood"`
	Food    int          `json:"food"`
	Weather weather.Kind `json:"weather"`
}

// Snapshot captures the current stocks and weather.
func (w *World) Snapshot() Snapshot {
	return Snapshot{
		Water:   w.stock[economy.Water],
		Wood:    w.stock[economy.Wood],
		Food:    w.stock[economy.Food],
		Weather: w.weather,
	}
}

package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/social"
	"github.com/talgya/castaways/internal/weather"
	"github.com/talgya/castaways/internal/world"
)

var (
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("invalid game parameters")
	// ErrMissingTrainer is returned when training is requested with a
	// provider that cannot learn.
	ErrMissingTrainer = errors.New("training mode needs a learning decision provider")
	// ErrMissingProvider is returned when no decision provider is given.
	ErrMissingProvider = errors.New("missing decision provider")
)

// FetchFactors holds the yield multiplier set for each resource.
type FetchFactors struct {
	Water []int `json:"water" yaml:"water"`
	Wood  []int `json:"wood" yaml:"wood"`
	Food  []int `json:"food" yaml:"food"`
}

// Params is the full configuration surface of one game.
type Params struct {
	Players          int            `json:"players" yaml:"players"`
	WreckProbability float64        `json:"wreck_probability" yaml:"wreck_probability"`
	Buckets          int            `json:"buckets" yaml:"buckets"`
	Axes             int            `json:"axes" yaml:"axes"`
	FishingRods      int            `json:"fishing_rods" yaml:"fishing_rods"`
	Initial          economy.Counts `json:"initial" yaml:"initial"`
	FetchFactors     FetchFactors   `json:"fetch_factors" yaml:"fetch_factors"`

	DefaultWeather weather.Kind `json:"default_weather" yaml:"default_weather"`
	WeatherRule    string       `json:"weather_rule" yaml:"weather_rule"`
	FoodWeather    weather.Kind `json:"food_weather" yaml:"food_weather"` // Weather that doubles food yield

	ToLeave         economy.Counts `json:"to_leave" yaml:"to_leave"`                 // Per living member
	Stipend         social.Stipend `json:"stipend" yaml:"stipend"`                   // Per member on join
	ObjectiveMargin economy.Counts `json:"objective_margin" yaml:"objective_margin"` // Per member, on top of ToLeave

	MaxDays       int    `json:"max_days" yaml:"max_days"` // 0 disables the cap
	Training      bool   `json:"training" yaml:"training"`
	BrainLocation string `json:"brain_location" yaml:"brain_location"`
	Seed          int64  `json:"seed" yaml:"seed"`
}

// DefaultParams returns the standard 22-castaway game.
func DefaultParams() Params {
	return Params{
		Players:          22,
		WreckProbability: 0.5,
		Buckets:          1,
		Axes:             1,
		FishingRods:      1,
		Initial:          economy.Counts{Water: 5000, Wood: 5000, Food: 5000},
		FetchFactors: FetchFactors{
			Water: []int{1, 2, 3},
			Wood:  []int{1, 2, 3},
			Food:  []int{1, 2, 3},
		},
		DefaultWeather:  weather.Clear,
		WeatherRule:     weather.RuleUniform,
		FoodWeather:     weather.Cloudy,
		ToLeave:         economy.Counts{Water: 1, Wood: 5, Food: 1},
		Stipend:         social.Stipend{Water: 2, Food: 2},
		ObjectiveMargin: economy.Counts{Water: 2, Wood: 0, Food: 2},
		MaxDays:         1000,
		BrainLocation:   "brains/q_network.pol",
	}
}

// Validate reports the first configuration problem found.
func (p Params) Validate() error {
	switch {
	case p.Players < 1:
		return fmt.Errorf("%w: players must be at least 1, got %d", ErrInvalidParams, p.Players)
	case math.IsNaN(p.WreckProbability) || p.WreckProbability < 0 || p.WreckProbability > 1:
		return fmt.Errorf("%w: %w: got %v", ErrInvalidParams, world.ErrInvalidProbability, p.WreckProbability)
	case p.Buckets < 0 || p.Axes < 0 || p.FishingRods < 0:
		return fmt.Errorf("%w: equipment counts must not be negative", ErrInvalidParams)
	case p.MaxDays < 0:
		return fmt.Errorf("%w: max_days must not be negative", ErrInvalidParams)
	case !p.DefaultWeather.Valid() || !p.FoodWeather.Valid():
		return fmt.Errorf("%w: unknown weather", ErrInvalidParams)
	case p.FoodWeather != weather.Cloudy && p.FoodWeather != weather.Storm:
		return fmt.Errorf("%w: food_weather must be cloudy or storm, got %s", ErrInvalidParams, p.FoodWeather)
	case !weather.ValidRuleName(p.WeatherRule):
		return fmt.Errorf("%w: unknown weather rule %q", ErrInvalidParams, p.WeatherRule)
	}
	if err := p.worldConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := p.colonyConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

func (p Params) worldConfig() world.Config {
	return world.Config{
		Initial: p.Initial.Stock(),
		Factors: [economy.NumResources][]int{
			economy.Water: p.FetchFactors.Water,
			economy.Wood:  p.FetchFactors.Wood,
			economy.Food:  p.FetchFactors.Food,
		},
		InitialWeather: p.DefaultWeather,
		FoodWeather:    p.FoodWeather,
	}
}

func (p Params) colonyConfig() social.Config {
	cfg := social.DefaultConfig()
	cfg.Reserve = p.ToLeave.Stock()
	cfg.Stipend = p.Stipend
	cfg.Margin = p.ObjectiveMargin.Stock()
	return cfg
}

// Clone returns a deep copy, so factor slices are not shared between games.
func (p Params) Clone() Params {
	p.FetchFactors = FetchFactors{
		Water: append([]int(nil), p.FetchFactors.Water...),
		Wood:  append([]int(nil), p.FetchFactors.Wood...),
		Food:  append([]int(nil), p.FetchFactors.Food...),
	}
	return p
}

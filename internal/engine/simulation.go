// Package engine provides the day-cycle simulation: one Game wires the
// island, the wreck and the colony together and advances them a day at a time.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/social"
	"github.com/talgya/castaways/internal/weather"
	"github.com/talgya/castaways/internal/world"
)

var (
	// ErrGameOver is returned when advancing a game nobody is left to play.
	ErrGameOver = errors.New("game is over")
	// ErrDayLimit is returned when a game reaches Params.MaxDays unresolved.
	ErrDayLimit = errors.New("day limit reached")
)

// Option customises a Game beyond its Params.
type Option func(*options)

type options struct {
	rng  *rand.Rand
	rule weather.Rule
	seed *int64
}

// WithRand makes the game draw all randomness from rng instead of a
// source seeded from Params.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithSeed replaces Params.Seed.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithWeatherRule overrides the rule named by Params.WeatherRule. It is the
// only way to use the live rule.
func WithWeatherRule(rule weather.Rule) Option {
	return func(o *options) { o.rule = rule }
}

// Game holds one run's state and wires systems together.
type Game struct {
	params  Params
	rng     *rand.Rand
	world   *world.World
	wreck   *world.Wreck
	colony  *social.Colony
	learner agents.Learner
	day     int
	initial Snapshot
	lastDay []agents.Transition

	// OnDay is called after every resolved day.
	OnDay func(DaySummary)
}

// island presents the world and the wreck to agents as one environment.
type island struct {
	world *world.World
	wreck *world.Wreck
}

func (i island) Fetch(r economy.Resource, n int) (world.FetchResult, error) {
	return i.world.Fetch(r, n)
}

func (i island) SearchWreck(held economy.Inventory) (economy.Equipment, bool) {
	return i.wreck.Search(held)
}

func (i island) Weather() weather.Kind { return i.world.Weather() }

func (i island) WreckInterest() float64 { return i.wreck.Interest() }

// New validates p and builds a game whose castaways all consult provider.
func New(p Params, provider agents.DecisionProvider, opts ...Option) (*Game, error) {
	if provider == nil {
		return nil, ErrMissingProvider
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Clone()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.seed != nil {
		p.Seed = *o.seed
	}

	g := &Game{params: p}
	if p.Training {
		l, ok := provider.(agents.Learner)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrMissingTrainer, provider)
		}
		g.learner = l
	}

	g.rng = o.rng
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(p.Seed))
	}

	rule := o.rule
	if rule == nil {
		var err error
		rule, err = weather.NewRule(p.WeatherRule, p.DefaultWeather, g.rng, p.Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}

	var err error
	if g.world, err = world.New(p.worldConfig(), rule, g.rng); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if g.wreck, err = world.NewWreck(p.WreckProbability, g.rng); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	for _, pile := range []world.Stockpile{
		{Kind: economy.Bucket, Count: p.Buckets},
		{Kind: economy.Axe, Count: p.Axes},
		{Kind: economy.FishingRod, Count: p.FishingRods},
	} {
		if err := g.wreck.AddItems(pile.Kind, pile.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	if g.colony, err = social.New(p.colonyConfig()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	spawner := agents.NewSpawner(island{world: g.world, wreck: g.wreck}, g.colony, provider)
	for _, a := range spawner.SpawnPopulation(p.Players) {
		if err := g.colony.AddPlayer(a); err != nil {
			return nil, err
		}
	}

	g.initial = g.Snapshot()
	return g, nil
}

// AdvanceDay runs one full day: weather, actions in roster order, the
// mortality lottery, dinner and departure.
func (g *Game) AdvanceDay() (DaySummary, error) {
	if g.GameOver() {
		return DaySummary{}, ErrGameOver
	}
	if g.params.MaxDays > 0 && g.day >= g.params.MaxDays {
		return DaySummary{}, fmt.Errorf("%w: %d days", ErrDayLimit, g.day)
	}
	g.colony.Seal()

	g.day++
	sum := DaySummary{Day: g.day, Weather: g.world.Update(g.day)}

	acting := g.colony.Alive()
	sum.Actions = make([]PlayerAction, 0, len(acting))
	for _, a := range acting {
		act, _, err := a.DecideAndAct(g.day)
		if err != nil {
			return DaySummary{}, fmt.Errorf("day %d: %w", g.day, err)
		}
		sum.Actions = append(sum.Actions, PlayerAction{PlayerID: a.ID, ActionID: act})
	}

	if !g.colony.EnoughResources() {
		victims, err := g.colony.Cull(g.day, g.rng)
		if err != nil {
			return DaySummary{}, fmt.Errorf("day %d: %w", g.day, err)
		}
		for _, v := range victims {
			sum.Deaths = append(sum.Deaths, v.ID)
		}
	}

	if g.colony.AliveCount() > 0 {
		if err := g.colony.Dine(); err != nil {
			return DaySummary{}, fmt.Errorf("day %d: %w", g.day, err)
		}
		if g.colony.AbleToLeave() {
			left, err := g.colony.LeaveIsle()
			if err != nil {
				return DaySummary{}, fmt.Errorf("day %d: %w", g.day, err)
			}
			for _, a := range left {
				sum.Escaped = append(sum.Escaped, a.ID)
			}
		}
	}

	sum.NightState = g.Snapshot()

	g.lastDay = g.lastDay[:0]
	for _, a := range acting {
		if t, ok := a.LastTransition(); ok {
			g.lastDay = append(g.lastDay, t)
		}
	}
	if g.learner != nil {
		for _, t := range g.lastDay {
			if err := g.learner.Learn(t); err != nil {
				return DaySummary{}, fmt.Errorf("day %d: learn: %w", g.day, err)
			}
		}
	}

	slog.Debug("day resolved",
		"day", g.day,
		"weather", sum.Weather,
		"alive", g.colony.AliveCount(),
		"deaths", len(sum.Deaths),
		"escaped", len(sum.Escaped),
	)
	if g.GameOver() {
		slog.Debug("game over", "day", g.day, "won", g.Won())
	}

	if g.OnDay != nil {
		g.OnDay(sum)
	}
	return sum, nil
}

// RunSingle advances one day, returning nil once the game is over.
func (g *Game) RunSingle() (*DaySummary, error) {
	if g.GameOver() {
		return nil, nil
	}
	sum, err := g.AdvanceDay()
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Run plays the game to completion from its current day.
func (g *Game) Run() (*GameSummary, error) {
	out := &GameSummary{Seed: g.params.Seed, InitialState: g.initial}
	for !g.GameOver() {
		sum, err := g.AdvanceDay()
		if err != nil {
			return nil, err
		}
		out.Days = append(out.Days, sum)
	}
	out.Won = g.Won()
	out.DaysPlayed = g.day

	if out.Won {
		slog.Info("victory: castaways left the isle", "seed", out.Seed, "days", out.DaysPlayed, "escaped", out.Survivors())
	} else {
		slog.Info("defeat: nobody left the isle", "seed", out.Seed, "days", out.DaysPlayed)
	}
	return out, nil
}

// GameOver reports whether no castaway is alive or sick.
func (g *Game) GameOver() bool { return g.colony.AliveCount() == 0 }

// Won reports whether at least one castaway escaped.
func (g *Game) Won() bool { return g.colony.Escaped() }

// Day returns the number of days played.
func (g *Game) Day() int { return g.day }

// Params returns the parameters the game was built with.
func (g *Game) Params() Params { return g.params.Clone() }

// Colony returns the colony.
func (g *Game) Colony() *social.Colony { return g.colony }

// World returns the island's resource pool.
func (g *Game) World() *world.World { return g.world }

// Wreck returns the salvage site.
func (g *Game) Wreck() *world.Wreck { return g.wreck }

// Transitions returns every agent-day transition from the last resolved day.
func (g *Game) Transitions() []agents.Transition {
	return append([]agents.Transition(nil), g.lastDay...)
}

// Snapshot captures the current world, wreck and colony state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		World:  g.world.Snapshot(),
		Wreck:  g.wreck.Snapshot(),
		Colony: g.colony.Snapshot(),
	}
}

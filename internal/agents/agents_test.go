package agents

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/weather"
	"github.com/talgya/castaways/internal/world"
)

type testIsland struct {
	world *world.World
	wreck *world.Wreck
}

func (i testIsland) Fetch(r economy.Resource, n int) (world.FetchResult, error) {
	return i.world.Fetch(r, n)
}
func (i testIsland) SearchWreck(held economy.Inventory) (economy.Equipment, bool) {
	return i.wreck.Search(held)
}
func (i testIsland) Weather() weather.Kind { return i.world.Weather() }
func (i testIsland) WreckInterest() float64 { return i.wreck.Interest() }

type testHome struct {
	stock   economy.Stock
	outlook Outlook
}

func (h *testHome) Deposit(r economy.Resource, n int) { h.stock[r] += n }
func (h *testHome) DailyFitness() float64 {
	return float64(h.stock[economy.Water] + h.stock[economy.Wood] + h.stock[economy.Food])
}
func (h *testHome) Outlook(AgentID) Outlook { return h.outlook }

func newIsland(t *testing.T, cfg world.Config, p float64) testIsland {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	w, err := world.New(cfg, weather.Fixed{Kind: cfg.InitialWeather}, rng)
	require.NoError(t, err)
	wr, err := world.NewWreck(p, rng)
	require.NoError(t, err)
	return testIsland{world: w, wreck: wr}
}

func TestFetchWater_WithBucket(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Initial = economy.Stock{10, 0, 0}
	cfg.Factors[economy.Water] = []int{2}
	island := newIsland(t, cfg, 0)
	home := &testHome{}

	a := New(1, island, home, Always(FetchWater))
	a.inventory.Add(economy.Bucket)

	out, err := a.Act(FetchWater)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Amount)
	assert.Equal(t, 4, home.stock[economy.Water])
	assert.Equal(t, 6, island.world.Stock()[economy.Water])
}

func TestFetch_DepletedIsNoOp(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Initial = economy.Stock{0, 0, 0}
	island := newIsland(t, cfg, 0)
	home := &testHome{}

	a := New(1, island, home, Always(FetchFood))
	out, err := a.Act(FetchFood)
	require.NoError(t, err)
	assert.True(t, out.Depleted)
	assert.Zero(t, out.Amount)
	assert.Equal(t, economy.Stock{}, home.stock)
}

func TestSearchWreck_AddsToInventory(t *testing.T) {
	island := newIsland(t, world.DefaultConfig(), 1)
	require.NoError(t, island.wreck.AddItems(economy.Axe, 1))

	a := New(1, island, &testHome{}, Always(SearchWreck))
	out, err := a.Act(SearchWreck)
	require.NoError(t, err)
	assert.True(t, out.FoundItem)
	assert.Equal(t, economy.Axe, out.Found)
	assert.True(t, a.Has(economy.Axe))

	out, err = a.Act(SearchWreck)
	require.NoError(t, err)
	assert.False(t, out.FoundItem)
}

func TestAct_UnknownAction(t *testing.T) {
	a := New(1, newIsland(t, world.DefaultConfig(), 0), &testHome{}, Always(7))
	_, err := a.Act(Action(9))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, _, err = a.DecideAndAct(1)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecideAndAct_RecordsTransition(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Factors[economy.Wood] = []int{1}
	home := &testHome{}
	a := New(3, newIsland(t, cfg, 0), home, Always(FetchWood))

	_, ok := a.LastTransition()
	assert.False(t, ok)

	act, out, err := a.DecideAndAct(5)
	require.NoError(t, err)
	assert.Equal(t, FetchWood, act)
	assert.Equal(t, 1, out.Amount)

	tr, ok := a.LastTransition()
	require.True(t, ok)
	assert.Equal(t, AgentID(3), tr.AgentID)
	assert.Equal(t, 5, tr.Day)
	assert.Equal(t, FetchWood, tr.Action)
	assert.Equal(t, 0.0, tr.FitnessBefore)
	assert.Equal(t, 1.0, tr.FitnessAfter)
	assert.Equal(t, StateAlive, tr.State)
	assert.False(t, tr.Terminal())

	require.NoError(t, a.Die(5))
	tr, _ = a.LastTransition()
	assert.True(t, tr.Terminal())
}

func TestLifecycle(t *testing.T) {
	a := New(1, nil, nil, nil)
	_, ok := a.DayOfDeath()
	assert.False(t, ok)

	require.NoError(t, a.FallSick())
	assert.True(t, a.Living())
	require.NoError(t, a.Heal())
	assert.ErrorIs(t, a.Heal(), ErrNotSick)

	require.NoError(t, a.Die(12))
	day, ok := a.DayOfDeath()
	assert.True(t, ok)
	assert.Equal(t, 12, day)

	assert.ErrorIs(t, a.Die(13), ErrTerminal)
	assert.ErrorIs(t, a.Flee(), ErrTerminal)
	assert.False(t, a.Snapshot().Alive)

	b := New(2, nil, nil, nil)
	require.NoError(t, b.Flee())
	assert.ErrorIs(t, b.Flee(), ErrTerminal)
	_, ok = b.DayOfDeath()
	assert.False(t, ok)
	assert.True(t, b.Snapshot().Alive)
	assert.Equal(t, StateEscaped, b.Snapshot().State)
}

func TestObservation_Layout(t *testing.T) {
	var own economy.Inventory
	own.Add(economy.FishingRod)
	o := Outlook{
		Distance:       [economy.NumResources]float64{1, 0.5, 0.25},
		OthersEquipped: [economy.NumEquipment]float64{0.5, 0, 1},
	}
	obs := BuildObservation(weather.Storm, 0.8, own, o)

	assert.Equal(t, 14, ObservationSize)
	assert.Equal(t, Observation{
		0, 0, 0, 1,
		1, 0.5, 0.25,
		0.8,
		0, 0, 1,
		0.5, 0, 1,
	}, obs)
	for _, v := range obs {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNeeds(t *testing.T) {
	n := Needs{Stock: economy.Stock{10, 0, 5}, Objective: economy.Stock{10, 10, 0}}
	assert.Equal(t, economy.Stock{0, 10, 0}, n.Shortfall())
	assert.Equal(t, 1.0, n.Distance(economy.Water))
	assert.InDelta(t, math.Exp(-4), n.Distance(economy.Wood), 1e-12)
	assert.Equal(t, 1.0, n.Distance(economy.Food))

	weights := [economy.NumResources]float64{1, 1, 1}
	prev := math.Inf(1)
	for wood := 10; wood >= 0; wood-- {
		f := Needs{Stock: economy.Stock{10, wood, 5}, Objective: economy.Stock{10, 10, 3}}.Fitness(weights)
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
}

func TestParseAction(t *testing.T) {
	act, err := ParseAction("search_wreck")
	require.NoError(t, err)
	assert.Equal(t, SearchWreck, act)
	_, err = ParseAction("swim")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, Action(-1).Valid())
}

func TestSpawner(t *testing.T) {
	s := NewSpawner(nil, nil, Always(FetchFood))
	pop := s.SpawnPopulation(3)
	require.Len(t, pop, 3)
	for i, a := range pop {
		assert.Equal(t, AgentID(i), a.ID)
		assert.Equal(t, StateAlive, a.State())
	}
	assert.Equal(t, AgentID(3), s.Spawn().ID)
}

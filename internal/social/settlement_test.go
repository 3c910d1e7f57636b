package social

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/economy"
)

func newColony(t *testing.T, cfg Config, members int) *Colony {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	for i := 0; i < members; i++ {
		require.NoError(t, c.AddPlayer(agents.New(agents.AgentID(i), nil, c, nil)))
	}
	return c
}

func noStipend() Config {
	cfg := DefaultConfig()
	cfg.Stipend = Stipend{}
	return cfg
}

func TestAddPlayer_DepositsStipend(t *testing.T) {
	c := newColony(t, DefaultConfig(), 3)
	assert.Equal(t, economy.Stock{6, 0, 6}, c.Stock())
	assert.Equal(t, 3, c.AliveCount())

	c.Seal()
	err := c.AddPlayer(agents.New(9, nil, c, nil))
	assert.ErrorIs(t, err, ErrRosterSealed)
	assert.Len(t, c.Members(), 3)
}

func TestRetrieve(t *testing.T) {
	c := newColony(t, noStipend(), 0)
	c.Deposit(economy.Wood, 4)
	c.Deposit(economy.Wood, -3)

	require.NoError(t, c.Retrieve(economy.Wood, 3))
	err := c.Retrieve(economy.Wood, 2)
	assert.ErrorIs(t, err, ErrInsufficientResources)
	assert.Equal(t, 1, c.Stock()[economy.Wood])
}

func TestCull_KillsExactlyTheDeficit(t *testing.T) {
	const trials = 2000
	deaths := make([]int, 5)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < trials; i++ {
		c := newColony(t, noStipend(), 5)
		c.Deposit(economy.Water, 3)
		c.Deposit(economy.Food, 10)
		c.Seal()

		assert.Equal(t, 3, c.LimitingFactor())
		assert.False(t, c.EnoughResources())

		victims, err := c.Cull(7, rng)
		require.NoError(t, err)
		require.Len(t, victims, 2)
		assert.NotEqual(t, victims[0].ID, victims[1].ID)
		assert.Equal(t, 3, c.AliveCount())
		assert.True(t, c.EnoughResources())

		for _, v := range victims {
			day, ok := v.DayOfDeath()
			require.True(t, ok)
			assert.Equal(t, 7, day)
			deaths[v.ID]++
		}

		require.NoError(t, c.Dine())
		assert.Equal(t, economy.Stock{0, 0, 7}, c.Stock())
	}

	// Each member should die with probability 2/5.
	for id, n := range deaths {
		assert.InDelta(t, 0.4, float64(n)/trials, 0.05, "agent %d", id)
	}
}

func TestCull_NoDeficit(t *testing.T) {
	c := newColony(t, DefaultConfig(), 4)
	victims, err := c.Cull(1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, victims)
	assert.Equal(t, 4, c.AliveCount())
}

func TestDine_ShortIsInvariantViolation(t *testing.T) {
	c := newColony(t, noStipend(), 2)
	c.Deposit(economy.Water, 2)
	c.Deposit(economy.Food, 1)

	err := c.Dine()
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, err, ErrInsufficientResources)
}

func TestAbleToLeave_AndLeaveIsle(t *testing.T) {
	c := newColony(t, noStipend(), 2)
	assert.False(t, c.AbleToLeave())

	c.Deposit(economy.Water, 2)
	c.Deposit(economy.Food, 2)
	c.Deposit(economy.Wood, 9)
	assert.False(t, c.AbleToLeave())

	c.Deposit(economy.Wood, 1)
	assert.True(t, c.AbleToLeave())

	left, err := c.LeaveIsle()
	require.NoError(t, err)
	assert.Len(t, left, 2)
	assert.Zero(t, c.AliveCount())
	assert.True(t, c.Escaped())
	assert.False(t, c.AbleToLeave())

	for _, s := range c.Snapshot().Agents {
		assert.True(t, s.Alive)
		assert.Equal(t, agents.StateEscaped, s.State)
	}
}

func TestAbleToLeave_ThresholdsScaleWithLiving(t *testing.T) {
	c := newColony(t, noStipend(), 3)
	c.Deposit(economy.Water, 2)
	c.Deposit(economy.Food, 2)
	c.Deposit(economy.Wood, 10)
	assert.False(t, c.AbleToLeave())

	require.NoError(t, c.Members()[0].Die(1))
	assert.True(t, c.AbleToLeave())
}

func TestDailyFitness_Monotone(t *testing.T) {
	c := newColony(t, noStipend(), 4)
	objectives := c.Objectives()
	assert.Equal(t, economy.Stock{12, 20, 12}, objectives)

	for _, r := range economy.Resources {
		prev := math.Inf(-1)
		probe := newColony(t, noStipend(), 4)
		for i := 0; i <= objectives[r]+3; i++ {
			f := probe.DailyFitness()
			assert.GreaterOrEqual(t, f, prev, "%s at %d", r, i)
			prev = f
			probe.Deposit(r, 1)
		}
	}

	full := newColony(t, noStipend(), 4)
	for _, r := range economy.Resources {
		full.Deposit(r, objectives[r])
	}
	assert.InDelta(t, 3.0, full.DailyFitness(), 1e-12)
	assert.Equal(t, economy.Counts{}, full.Snapshot().Shortfall)
}

func TestOutlook_ExcludesSelf(t *testing.T) {
	c := newColony(t, noStipend(), 3)
	members := c.Members()
	members[1].Equip(economy.Axe)

	o := c.Outlook(members[0].ID)
	assert.InDelta(t, 0.5, o.OthersEquipped[economy.Axe], 1e-12)
	assert.Zero(t, o.OthersEquipped[economy.Bucket])

	o = c.Outlook(members[1].ID)
	assert.Zero(t, o.OthersEquipped[economy.Axe])

	require.NoError(t, members[2].Die(1))
	o = c.Outlook(members[0].ID)
	assert.Equal(t, 1.0, o.OthersEquipped[economy.Axe])

	require.NoError(t, members[1].Die(1))
	o = c.Outlook(members[0].ID)
	assert.Zero(t, o.OthersEquipped[economy.Axe])
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reserve[economy.Wood] = -1
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Stipend.Food = -2
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

// Package agents provides the castaway data model, the action set, the
// observation schema, and the contract decision providers implement.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/weather"
	"github.com/talgya/castaways/internal/world"
)

// AgentID is a unique identifier for an agent within one run.
type AgentID int

// State is an agent's lifecycle state.
type State uint8

const (
	StateAlive   State = iota + 1
	StateDead
	StateEscaped
	StateSick
)

var stateNames = map[State]string{
	StateAlive:   "alive",
	StateDead:    "dead",
	StateEscaped: "escaped",
	StateSick:    "sick",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown agent state %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for st, n := range stateNames {
		if n == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown agent state %q", b)
}

// Living reports whether the agent still takes part in the day loop.
func (s State) Living() bool { return s == StateAlive || s == StateSick }

// Terminal reports whether the agent has left the game for good.
func (s State) Terminal() bool { return s == StateDead || s == StateEscaped }

var (
	// ErrTerminal is returned when a lifecycle transition is attempted on an
	// agent that is already dead or escaped.
	ErrTerminal = errors.New("agent is in a terminal state")
	// ErrNotSick is returned by Heal on an agent that is not sick.
	ErrNotSick = errors.New("agent is not sick")
)

// Environment is the island as seen by an agent: the resource pool, the
// wreck, and the weather.
type Environment interface {
	Fetch(r economy.Resource, amount int) (world.FetchResult, error)
	SearchWreck(held economy.Inventory) (economy.Equipment, bool)
	Weather() weather.Kind
	WreckInterest() float64
}

// Home is the colony as seen by one of its members.
type Home interface {
	Deposit(r economy.Resource, amount int)
	DailyFitness() float64
	Outlook(self AgentID) Outlook
}

// Outlook is the read-only colony view an agent needs to build an observation.
type Outlook struct {
	Distance       [economy.NumResources]float64 // Per-resource closeness to objective, in (0, 1]
	OthersEquipped [economy.NumEquipment]float64 // Share of other living members holding each kind
}

// Agent is a castaway. The engine owns the day loop; the agent owns its
// state, inventory, and the record of its last decision.
type Agent struct {
	ID AgentID

	state      State
	inventory  economy.Inventory
	dayOfDeath int

	env      Environment
	home     Home
	provider DecisionProvider

	last    Transition
	hasLast bool
}

// New creates a living agent with an empty inventory.
func New(id AgentID, env Environment, home Home, provider DecisionProvider) *Agent {
	return &Agent{
		ID:       id,
		state:    StateAlive,
		env:      env,
		home:     home,
		provider: provider,
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State { return a.state }

// Living reports whether the agent is alive or sick.
func (a *Agent) Living() bool { return a.state.Living() }

// Inventory returns a copy of the equipment held.
func (a *Agent) Inventory() economy.Inventory { return a.inventory }

// Has reports whether the agent holds at least one item of kind e.
func (a *Agent) Has(e economy.Equipment) bool { return a.inventory.Has(e) }

// Equip hands the agent one item of kind e outside the wreck search, for
// scenarios that start castaways with tools.
func (a *Agent) Equip(e economy.Equipment) {
	a.inventory.Add(e)
}

// DayOfDeath returns the day the agent died; ok is false unless it is dead.
func (a *Agent) DayOfDeath() (day int, ok bool) {
	if a.state != StateDead {
		return 0, false
	}
	return a.dayOfDeath, true
}

// Die marks the agent dead on the given day.
func (a *Agent) Die(day int) error {
	if a.state.Terminal() {
		return fmt.Errorf("agent %d die: %w (%s)", a.ID, ErrTerminal, a.state)
	}
	a.state = StateDead
	a.dayOfDeath = day
	return nil
}

// Flee marks the agent as having escaped the island.
func (a *Agent) Flee() error {
	if a.state.Terminal() {
		return fmt.Errorf("agent %d flee: %w (%s)", a.ID, ErrTerminal, a.state)
	}
	a.state = StateEscaped
	return nil
}

// FallSick moves a living agent to the sick state.
func (a *Agent) FallSick() error {
	if a.state.Terminal() {
		return fmt.Errorf("agent %d fall sick: %w (%s)", a.ID, ErrTerminal, a.state)
	}
	a.state = StateSick
	return nil
}

// Heal returns a sick agent to health.
func (a *Agent) Heal() error {
	if a.state != StateSick {
		return fmt.Errorf("agent %d heal: %w (%s)", a.ID, ErrNotSick, a.state)
	}
	a.state = StateAlive
	return nil
}

// Snapshot is the serialisable state of an Agent.
type Snapshot struct {
	ID            AgentID `json:"id"`
	Alive         bool    `json:"alive"` // Not dead: alive, sick, or escaped
	State         State   `json:"state"`
	HasBucket     bool    `json:"has_bucket"`
	HasAxe        bool    `json:"has_axe"`
	HasFishingRod bool    `json:"has_fishing_rod"`
}

// Snapshot captures the agent's id, state and equipment flags.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		ID:            a.ID,
		Alive:         a.state != StateDead,
		State:         a.state,
		HasBucket:     a.inventory.Has(economy.Bucket),
		HasAxe:        a.inventory.Has(economy.Axe),
		HasFishingRod: a.inventory.Has(economy.FishingRod),
	}
}

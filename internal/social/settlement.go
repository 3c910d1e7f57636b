// Package social provides the colony: the castaways' shared stockpile,
// their roster, and the nightly rules for eating, dying and leaving.
package social

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/economy"
)

var (
	// ErrInsufficientResources is returned when a withdrawal exceeds the stock.
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrInvariant marks a broken colony invariant, such as dinner failing
	// after mortality should have made it affordable.
	ErrInvariant = errors.New("colony invariant violated")
	// ErrRosterSealed is returned when a member joins after the first day.
	ErrRosterSealed = errors.New("colony roster is sealed")
	// ErrInvalidConfig is returned for negative thresholds, stipends or weights.
	ErrInvalidConfig = errors.New("invalid colony config")
)

// Stipend is what each member brings when joining. Wood is never part of it.
type Stipend struct {
	Water int `json:"water" yaml:"water"`
	Food  int `json:"food" yaml:"food"`
}

// Config holds the colony's rule parameters.
type Config struct {
	Reserve economy.Stock                 // Per living member, required to leave
	Stipend Stipend                       // Deposited on join
	Margin  economy.Stock                 // Added to Reserve when computing objectives
	Weights [economy.NumResources]float64 // Fitness weight per resource
}

// DefaultConfig returns wood 5, water 1, food 1 to leave, a stipend of two
// water and two food, and equal fitness weights.
func DefaultConfig() Config {
	return Config{
		Reserve: economy.Stock{1, 5, 1},
		Stipend: Stipend{Water: 2, Food: 2},
		Margin:  economy.Stock{2, 0, 2},
		Weights: [economy.NumResources]float64{1, 1, 1},
	}
}

// Validate checks that every parameter is non-negative.
func (c Config) Validate() error {
	for _, r := range economy.Resources {
		if c.Reserve[r] < 0 || c.Margin[r] < 0 || c.Weights[r] < 0 {
			return fmt.Errorf("%w: negative %s parameter", ErrInvalidConfig, r)
		}
	}
	if c.Stipend.Water < 0 || c.Stipend.Food < 0 {
		return fmt.Errorf("%w: negative stipend", ErrInvalidConfig)
	}
	return nil
}

// Colony is the shared stockpile and the roster of castaways in join order.
type Colony struct {
	cfg     Config
	stock   economy.Stock
	members []*agents.Agent
	sealed  bool
}

// New creates an empty colony.
func New(cfg Config) (*Colony, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Colony{cfg: cfg}, nil
}

// AddPlayer appends a to the roster and deposits its stipend.
func (c *Colony) AddPlayer(a *agents.Agent) error {
	if c.sealed {
		return fmt.Errorf("add agent %d: %w", a.ID, ErrRosterSealed)
	}
	c.members = append(c.members, a)
	c.Deposit(economy.Water, c.cfg.Stipend.Water)
	c.Deposit(economy.Food, c.cfg.Stipend.Food)
	return nil
}

// Seal closes the roster. The engine calls it before the first day.
func (c *Colony) Seal() { c.sealed = true }

// Deposit adds n units of r. Negative amounts are ignored.
func (c *Colony) Deposit(r economy.Resource, n int) {
	if n > 0 {
		c.stock[r] += n
	}
}

// Retrieve removes n units of r, failing without change if the stock is short.
func (c *Colony) Retrieve(r economy.Resource, n int) error {
	if n > c.stock[r] {
		return fmt.Errorf("retrieve %d %s, have %d: %w", n, r, c.stock[r], ErrInsufficientResources)
	}
	c.stock[r] -= n
	return nil
}

// Stock returns the shared stockpile.
func (c *Colony) Stock() economy.Stock { return c.stock }

// Members returns the whole roster in join order.
func (c *Colony) Members() []*agents.Agent {
	return append([]*agents.Agent(nil), c.members...)
}

// Alive returns the living members in join order.
func (c *Colony) Alive() []*agents.Agent {
	out := make([]*agents.Agent, 0, len(c.members))
	for _, a := range c.members {
		if a.Living() {
			out = append(out, a)
		}
	}
	return out
}

// AliveCount returns the number of living members.
func (c *Colony) AliveCount() int {
	n := 0
	for _, a := range c.members {
		if a.Living() {
			n++
		}
	}
	return n
}

// LimitingFactor is how many members tonight's food and water can feed.
func (c *Colony) LimitingFactor() int {
	return min(c.stock[economy.Water], c.stock[economy.Food])
}

// EnoughResources reports whether every living member can eat tonight.
func (c *Colony) EnoughResources() bool {
	return c.LimitingFactor() >= c.AliveCount()
}

// Deficit is how many living members cannot be fed tonight.
func (c *Colony) Deficit() int {
	return max(0, c.AliveCount()-c.LimitingFactor())
}

// Cull kills Deficit() living members chosen uniformly without replacement.
func (c *Colony) Cull(day int, rng *rand.Rand) ([]*agents.Agent, error) {
	deficit := c.Deficit()
	if deficit == 0 {
		return nil, nil
	}
	alive := c.Alive()
	rng.Shuffle(len(alive), func(i, j int) { alive[i], alive[j] = alive[j], alive[i] })
	victims := alive[:deficit]
	for _, a := range victims {
		if err := a.Die(day); err != nil {
			return nil, fmt.Errorf("cull: %w", err)
		}
	}
	return victims, nil
}

// Dine feeds one water and one food to every living member.
func (c *Colony) Dine() error {
	for _, a := range c.Alive() {
		if err := c.Retrieve(economy.Food, 1); err != nil {
			return fmt.Errorf("%w: feeding agent %d: %w", ErrInvariant, a.ID, err)
		}
		if err := c.Retrieve(economy.Water, 1); err != nil {
			return fmt.Errorf("%w: watering agent %d: %w", ErrInvariant, a.ID, err)
		}
	}
	return nil
}

// Objectives is (reserve + margin) × living members per resource.
func (c *Colony) Objectives() economy.Stock {
	return c.cfg.Reserve.Add(c.cfg.Margin).Scale(c.AliveCount())
}

// Needs pairs the stock with the current objectives.
func (c *Colony) Needs() agents.Needs {
	return agents.Needs{Stock: c.stock, Objective: c.Objectives()}
}

// Shortfall is how far each stock is below its objective.
func (c *Colony) Shortfall() economy.Stock {
	return c.Needs().Shortfall()
}

// DailyFitness scores the colony's position; higher is better.
func (c *Colony) DailyFitness() float64 {
	return c.Needs().Fitness(c.cfg.Weights)
}

// AbleToLeave reports whether the stock covers the reserve for every
// living member. A colony with no one left cannot leave.
func (c *Colony) AbleToLeave() bool {
	n := c.AliveCount()
	if n == 0 {
		return false
	}
	return c.stock.Covers(c.cfg.Reserve.Scale(n))
}

// LeaveIsle moves every living member to the escaped state.
func (c *Colony) LeaveIsle() ([]*agents.Agent, error) {
	leaving := c.Alive()
	for _, a := range leaving {
		if err := a.Flee(); err != nil {
			return nil, fmt.Errorf("leave isle: %w", err)
		}
	}
	return leaving, nil
}

// Escaped reports whether at least one member got off the island.
func (c *Colony) Escaped() bool {
	for _, a := range c.members {
		if a.State() == agents.StateEscaped {
			return true
		}
	}
	return false
}

// Outlook is the read-only view agent self needs for its observation.
func (c *Colony) Outlook(self agents.AgentID) agents.Outlook {
	o := agents.Outlook{Distance: c.Needs().Distances()}

	others := 0
	var holding [economy.NumEquipment]int
	for _, a := range c.members {
		if a.ID == self || !a.Living() {
			continue
		}
		others++
		for _, e := range economy.EquipmentKinds {
			if a.Has(e) {
				holding[e]++
			}
		}
	}
	if others > 0 {
		for _, e := range economy.EquipmentKinds {
			o.OthersEquipped[e] = float64(holding[e]) / float64(others)
		}
	}
	return o
}

// Snapshot is the serialisable state of a Colony.
type Snapshot struct {
	Stock     economy.Counts    `json:"stock"`
	Shortfall economy.Counts    `json:"shortfall"`
	Agents    []agents.Snapshot `json:"agents"`
}

// Snapshot captures stock, shortfall and every member.
func (c *Colony) Snapshot() Snapshot {
	s := Snapshot{
		Stock:     c.stock.Counts(),
		Shortfall: c.Shortfall().Counts(),
		Agents:    make([]agents.Snapshot, 0, len(c.members)),
	}
	for _, a := range c.members {
		s.Agents = append(s.Agents, a.Snapshot())
	}
	return s
}

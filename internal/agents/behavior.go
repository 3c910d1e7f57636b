// Agent behavior: the fixed action set and how each action touches the
// island and the colony.
package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/castaways/internal/economy"
)

// Action is one of the daily choices available to an agent. Ids are stable
// and double as the output index of a decision provider.
type Action int

const (
	FetchWater  Action = 0
	FetchWood   Action = 1
	FetchFood   Action = 2
	SearchWreck Action = 3
)

// NumActions is the size of the action set.
const NumActions = 4

// Actions lists every action in id order.
var Actions = [NumActions]Action{FetchWater, FetchWood, FetchFood, SearchWreck}

var actionNames = [NumActions]string{"fetch_water", "fetch_wood", "fetch_food", "search_wreck"}

// ErrUnknownAction is returned for an action id outside the action set.
var ErrUnknownAction = errors.New("unknown action")

// Valid reports whether a is in the action set.
func (a Action) Valid() bool { return a >= 0 && int(a) < NumActions }

func (a Action) String() string {
	if a.Valid() {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts an action name into an Action.
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Outcome describes what an action achieved.
type Outcome struct {
	Action    Action
	Resource  economy.Resource // Fetch actions only
	Amount    int
	Depleted  bool
	Found     economy.Equipment // Valid when FoundItem is set
	FoundItem bool
}

// Act performs a on behalf of the agent.
func (a *Agent) Act(act Action) (Outcome, error) {
	switch act {
	case FetchWater:
		return a.fetch(act, economy.Water)
	case FetchWood:
		return a.fetch(act, economy.Wood)
	case FetchFood:
		return a.fetch(act, economy.Food)
	case SearchWreck:
		return a.searchWreck(), nil
	}
	return Outcome{}, fmt.Errorf("agent %d: %w: %d", a.ID, ErrUnknownAction, int(act))
}

// fetch gathers r with a request of one plus the number of matching tools
// held, depositing whatever comes back. A depleted pool is a no-op.
func (a *Agent) fetch(act Action, r economy.Resource) (Outcome, error) {
	requested := 1 + a.inventory.Count(economy.ToolFor(r))
	res, err := a.env.Fetch(r, requested)
	if err != nil {
		return Outcome{}, fmt.Errorf("agent %d %s: %w", a.ID, act, err)
	}
	out := Outcome{Action: act, Resource: r, Amount: res.Amount, Depleted: res.Depleted}
	if res.Amount > 0 {
		a.home.Deposit(r, res.Amount)
	}
	return out, nil
}

func (a *Agent) searchWreck() Outcome {
	out := Outcome{Action: SearchWreck}
	if kind, ok := a.env.SearchWreck(a.inventory); ok {
		a.inventory.Add(kind)
		out.Found, out.FoundItem = kind, true
	}
	return out
}

// DecideAndAct observes, asks the provider for an action, performs it, and
// records the transition for training.
func (a *Agent) DecideAndAct(day int) (Action, Outcome, error) {
	before := a.Observe()
	fitnessBefore := a.home.DailyFitness()

	act := a.provider.ChooseAction(before)
	if !act.Valid() {
		return act, Outcome{}, fmt.Errorf("agent %d: provider chose %w %d", a.ID, ErrUnknownAction, int(act))
	}

	out, err := a.Act(act)
	if err != nil {
		return act, out, err
	}

	a.last = Transition{
		AgentID:       a.ID,
		Day:           day,
		Before:        before,
		Action:        act,
		After:         a.Observe(),
		FitnessBefore: fitnessBefore,
		FitnessAfter:  a.home.DailyFitness(),
	}
	a.hasLast = true
	return act, out, nil
}

// LastTransition returns the agent's most recent decision, stamped with
// its current state so terminal outcomes of the night are visible.
func (a *Agent) LastTransition() (Transition, bool) {
	if !a.hasLast {
		return Transition{}, false
	}
	t := a.last
	t.State = a.state
	return t, true
}

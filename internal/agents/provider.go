package agents

// DecisionProvider maps an observation to one of the fixed actions.
type DecisionProvider interface {
	ChooseAction(obs Observation) Action
}

// Learner is the optional capability of a provider that trains online.
// The engine hands it every transition of a day once the night has been
// resolved.
type Learner interface {
	DecisionProvider
	Learn(t Transition) error
}

// Transition is one agent-day as seen by a learner.
type Transition struct {
	AgentID       AgentID     `json:"agent_id"`
	Day           int         `json:"day"`
	Before        Observation `json:"before"`
	Action        Action      `json:"action"`
	After         Observation `json:"after"`
	FitnessBefore float64     `json:"fitness_before"`
	FitnessAfter  float64     `json:"fitness_after"`
	State         State       `json:"state"` // Agent state once the night is resolved
}

// Terminal reports whether the agent left the game this day.
func (t Transition) Terminal() bool { return t.State.Terminal() }

// ProviderFunc adapts a plain function to DecisionProvider.
type ProviderFunc func(obs Observation) Action

func (f ProviderFunc) ChooseAction(obs Observation) Action { return f(obs) }

// Always returns a provider that picks act every day.
func Always(act Action) DecisionProvider {
	return ProviderFunc(func(Observation) Action { return act })
}

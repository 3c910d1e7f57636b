// Agent spawning: issues sequential ids and wires each new castaway to the
// island, its colony, and its decision provider.
package agents

// Spawner creates agents for one run.
type Spawner struct {
	env      Environment
	home     Home
	provider DecisionProvider
	nextID   AgentID
}

// NewSpawner creates a spawner whose agents share env, home and provider.
func NewSpawner(env Environment, home Home, provider DecisionProvider) *Spawner {
	return &Spawner{
		env:      env,
		home:     home,
		provider: provider,
		nextID:   0,
	}
}

// Spawn creates one agent.
func (s *Spawner) Spawn() *Agent {
	a := New(s.nextID, s.env, s.home, s.provider)
	s.nextID++
	return a
}

// SpawnPopulation creates count agents with consecutive ids.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.Spawn())
	}
	return out
}

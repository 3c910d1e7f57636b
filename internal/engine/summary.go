package engine

import (
	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/social"
	"github.com/talgya/castaways/internal/weather"
	"github.com/talgya/castaways/internal/world"
)

// Snapshot is the full observable state of a game at one instant.
type Snapshot struct {
	World  world.Snapshot      `json:"world"`
	Wreck  world.WreckSnapshot `json:"wreck"`
	Colony social.Snapshot     `json:"colony"`
}

// PlayerAction records which action an agent took on a day.
type PlayerAction struct {
	PlayerID agents.AgentID `json:"player_id"`
	ActionID agents.Action  `json:"action_id"`
}

// DaySummary records one day: the weather, every action in roster order,
// who died and who escaped, and the state once the night was resolved.
type DaySummary struct {
	Day        int              `json:"day"`
	Weather    weather.Kind     `json:"weather"`
	Actions    []PlayerAction   `json:"actions"`
	Deaths     []agents.AgentID `json:"deaths,omitempty"`
	Escaped    []agents.AgentID `json:"escaped,omitempty"`
	NightState Snapshot         `json:"night_state"`
}

// GameSummary is the record of a complete game.
type GameSummary struct {
	ID           string       `json:"id,omitempty"`
	Seed         int64        `json:"seed"`
	InitialState Snapshot     `json:"initial_state"`
	Days         []DaySummary `json:"days"`
	Won          bool         `json:"won"`
	DaysPlayed   int          `json:"days_played"`
}

// Survivors counts the agents that escaped.
func (s *GameSummary) Survivors() int {
	n := 0
	for _, d := range s.Days {
		n += len(d.Escaped)
	}
	return n
}

// Deaths counts the agents that died.
func (s *GameSummary) Deaths() int {
	n := 0
	for _, d := range s.Days {
		n += len(d.Deaths)
	}
	return n
}

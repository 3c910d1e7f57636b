package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/engine"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	sum := &engine.GameSummary{
		Won:        true,
		DaysPlayed: 2,
		Days: []engine.DaySummary{
			{Day: 1, Actions: []engine.PlayerAction{{PlayerID: 0, ActionID: agents.FetchWood}, {PlayerID: 1, ActionID: agents.SearchWreck}}, Deaths: []agents.AgentID{1}},
			{Day: 2, Actions: []engine.PlayerAction{{PlayerID: 0, ActionID: agents.FetchWood}}, Escaped: []agents.AgentID{0}},
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordRun(sum)
		}()
	}
	wg.Wait()
	r.RecordEvaluation(engine.WinRate{Games: 10, Wins: 3})
	r.RecordTraining(7)
	r.RecordFailure("bad_request")
	r.RecordFailure("bad_request")

	s := r.Snapshot()
	assert.Equal(t, 4, s.Runs)
	assert.Equal(t, 4, s.Wins)
	assert.Equal(t, 8, s.DaysSimulated)
	assert.Equal(t, 4, s.Deaths)
	assert.Equal(t, 4, s.Escapes)
	assert.Equal(t, 8, s.Actions["fetch_wood"])
	assert.Equal(t, 4, s.Actions["search_wreck"])
	assert.Equal(t, 0, s.Actions["fetch_water"])
	assert.Equal(t, 10, s.EvaluatedGames)
	assert.Equal(t, 3, s.EvaluatedWins)
	assert.Equal(t, 7, s.TrainingGames)
	assert.Equal(t, 2, s.Failures["bad_request"])
}

// Package metrics keeps in-memory counters for the API's /metrics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/engine"
)

// Recorder accumulates counters. The zero value is not usable; call
// NewRecorder. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	started time.Time
	runs    int
	wins    int
	days    int
	deaths  int
	escapes int
	actions [agents.NumActions]int

	evaluations   int
	evaluatedGame int
	evaluatedWins int

	trainingSessions int
	trainingGames    int

	failures map[string]int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{started: time.Now(), failures: map[string]int{}}
}

// RecordRun counts a finished single game.
func (r *Recorder) RecordRun(sum *engine.GameSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if sum.Won {
		r.wins++
	}
	r.days += sum.DaysPlayed
	r.deaths += sum.Deaths()
	r.escapes += sum.Survivors()
	for _, d := range sum.Days {
		for _, a := range d.Actions {
			if a.ActionID.Valid() {
				r.actions[a.ActionID]++
			}
		}
	}
}

// RecordEvaluation counts a win-rate batch.
func (r *Recorder) RecordEvaluation(w engine.WinRate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations++
	r.evaluatedGame += w.Games
	r.evaluatedWins += w.Wins
}

// RecordTraining counts a training session of games games.
func (r *Recorder) RecordTraining(games int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trainingSessions++
	r.trainingGames += games
}

// RecordFailure counts a failed request by kind.
func (r *Recorder) RecordFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds    float64        `json:"uptime_seconds"`
	Runs             int            `json:"runs"`
	Wins             int            `json:"wins"`
	DaysSimulated    int            `json:"days_simulated"`
	Deaths           int            `json:"deaths"`
	Escapes          int            `json:"escapes"`
	Actions          map[string]int `json:"actions"`
	Evaluations      int            `json:"evaluations"`
	EvaluatedGames   int            `json:"evaluated_games"`
	EvaluatedWins    int            `json:"evaluated_wins"`
	TrainingSessions int            `json:"training_sessions"`
	TrainingGames    int            `json:"training_games"`
	Failures         map[string]int `json:"failures"`
}

// Snapshot returns the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		UptimeSeconds:    time.Since(r.started).Seconds(),
		Runs:             r.runs,
		Wins:             r.wins,
		DaysSimulated:    r.days,
		Deaths:           r.deaths,
		Escapes:          r.escapes,
		Actions:          make(map[string]int, agents.NumActions),
		Evaluations:      r.evaluations,
		EvaluatedGames:   r.evaluatedGame,
		EvaluatedWins:    r.evaluatedWins,
		TrainingSessions: r.trainingSessions,
		TrainingGames:    r.trainingGames,
		Failures:         make(map[string]int, len(r.failures)),
	}
	for _, a := range agents.Actions {
		s.Actions[a.String()] = r.actions[a]
	}
	for k, v := range r.failures {
		s.Failures[k] = v
	}
	return s
}

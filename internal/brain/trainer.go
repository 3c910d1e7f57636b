package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/engine"
)

// Rewards handed to the learner for terminal outcomes.
const (
	DeathReward  = -100.0
	EscapeReward = 1000.0 // Divided by the day of escape
)

// ErrInvalidTrainConfig is returned for out-of-range training settings.
var ErrInvalidTrainConfig = errors.New("invalid training config")

// TrainConfig controls the Q-learning trainer.
type TrainConfig struct {
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Discount     float64 `json:"discount" yaml:"discount"`
	Epsilon      float64 `json:"epsilon" yaml:"epsilon"`
	Iterations   int     `json:"iterations" yaml:"iterations"`
	MaxWinStreak int     `json:"max_win_streak" yaml:"max_win_streak"` // 0 disables early stop
	GradClip     float64 `json:"grad_clip" yaml:"grad_clip"`           // 0 disables clipping
	Seed         int64   `json:"seed" yaml:"seed"`
}

// DefaultTrainConfig returns the standard training settings.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate: 0.001,
		Discount:     0.99,
		Epsilon:      0.1,
		Iterations:   100,
		MaxWinStreak: 100,
		GradClip:     10,
	}
}

// Validate reports the first bad setting.
func (c TrainConfig) Validate() error {
	switch {
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidTrainConfig)
	case c.Discount < 0 || c.Discount > 1:
		return fmt.Errorf("%w: discount must be in [0, 1]", ErrInvalidTrainConfig)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("%w: epsilon must be in [0, 1]", ErrInvalidTrainConfig)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be at least 1", ErrInvalidTrainConfig)
	case c.MaxWinStreak < 0 || c.GradClip < 0:
		return fmt.Errorf("%w: max_win_streak and grad_clip must not be negative", ErrInvalidTrainConfig)
	}
	return nil
}

// Trainer is an epsilon-greedy Q-learner. It implements agents.Learner.
type Trainer struct {
	cfg TrainConfig

	mu     sync.Mutex
	net    *Network
	rng    *rand.Rand
	steps  int
	reward float64 // Accumulated since the last takeReward

	// Progress, when set, is called after each training game.
	Progress func(IterationReport)
	// GameOptions are passed to every training game.
	GameOptions []engine.Option
}

// NewTrainer returns a trainer starting from net, or from a fresh random
// network when net is nil.
func NewTrainer(cfg TrainConfig, net *Network) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	if net == nil {
		net = NewNetwork(rng)
	} else {
		if err := net.Validate(); err != nil {
			return nil, err
		}
		net = net.Clone()
	}
	return &Trainer{cfg: cfg, net: net, rng: rng}, nil
}

// ChooseAction explores with probability epsilon and exploits otherwise.
func (t *Trainer) ChooseAction(obs agents.Observation) agents.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rng.Float64() < t.cfg.Epsilon {
		return agents.Actions[t.rng.Intn(agents.NumActions)]
	}
	return t.net.Best(obs)
}

// Reward scores a transition: the colony's fitness after the action, or a
// fixed penalty for dying, or a bonus for escaping that shrinks with time.
func Reward(tr agents.Transition) float64 {
	switch tr.State {
	case agents.StateDead:
		return DeathReward
	case agents.StateEscaped:
		day := tr.Day
		if day < 1 {
			day = 1
		}
		return EscapeReward / float64(day)
	}
	return tr.FitnessAfter
}

// Learn applies one Q-learning update. Terminal transitions do not bootstrap.
func (t *Trainer) Learn(tr agents.Transition) error {
	if !tr.Action.Valid() {
		return fmt.Errorf("learn: %w: %d", agents.ErrUnknownAction, int(tr.Action))
	}
	reward := Reward(tr)

	t.mu.Lock()
	defer t.mu.Unlock()

	target := reward
	if !tr.Terminal() {
		next := t.net.QValues(tr.After)
		target += t.cfg.Discount * next[argmax(next)]
	}
	t.net.step(tr.Before, tr.Action, target, t.cfg.LearningRate, t.cfg.GradClip)
	t.steps++
	t.reward += reward
	return nil
}

// Steps returns the number of updates applied so far.
func (t *Trainer) Steps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps
}

// Network returns a copy of the current network.
func (t *Trainer) Network() *Network {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.net.Clone()
}

// Config returns the training settings.
func (t *Trainer) Config() TrainConfig { return t.cfg }

func (t *Trainer) takeReward() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.reward
	t.reward = 0
	return r
}

// IterationReport describes one training game.
type IterationReport struct {
	Iteration int     `json:"iteration"`
	Won       bool    `json:"won"`
	Stalled   bool    `json:"stalled,omitempty"`
	Days      int     `json:"days"`
	Reward    float64 `json:"reward"`
	WinStreak int     `json:"win_streak"`
}

// TrainReport summarises a training session.
type TrainReport struct {
	Iterations   int           `json:"iterations"`
	Wins         int           `json:"wins"`
	BestStreak   int           `json:"best_streak"`
	StoppedEarly bool          `json:"stopped_early"`
	Steps        int           `json:"steps"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// Train plays up to cfg.Iterations games with every castaway consulting
// and teaching t. Game i is seeded p.Seed+i. It stops early after
// MaxWinStreak consecutive wins.
func (t *Trainer) Train(ctx context.Context, p engine.Params) (TrainReport, error) {
	p = p.Clone()
	p.Training = true
	if err := p.Validate(); err != nil {
		return TrainReport{}, err
	}

	start := time.Now()
	var rep TrainReport
	streak := 0
	for i := 0; i < t.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		g, err := engine.New(p, t, append([]engine.Option{engine.WithSeed(p.Seed + int64(i))}, t.GameOptions...)...)
		if err != nil {
			return rep, fmt.Errorf("iteration %d: %w", i, err)
		}
		t.takeReward()

		it := IterationReport{Iteration: i}
		sum, err := g.Run()
		switch {
		case errors.Is(err, engine.ErrDayLimit):
			it.Stalled = true
			it.Days = g.Day()
		case err != nil:
			return rep, fmt.Errorf("iteration %d: %w", i, err)
		default:
			it.Won = sum.Won
			it.Days = sum.DaysPlayed
		}
		it.Reward = t.takeReward()

		rep.Iterations++
		if it.Won {
			rep.Wins++
			streak++
		} else {
			streak = 0
		}
		rep.BestStreak = max(rep.BestStreak, streak)
		it.WinStreak = streak

		slog.Info("training iteration",
			"iteration", i,
			"won", it.Won,
			"days", it.Days,
			"reward", fmt.Sprintf("%.2f", it.Reward),
			"streak", streak,
		)
		if t.Progress != nil {
			t.Progress(it)
		}

		if t.cfg.MaxWinStreak > 0 && streak >= t.cfg.MaxWinStreak {
			rep.StoppedEarly = true
			slog.Info("training stopped early", "iteration", i, "streak", streak)
			break
		}
	}
	rep.Steps = t.Steps()
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// Save writes the current network to path.
func (t *Trainer) Save(path string, rep TrainReport) error {
	hdr := PolicyHeader{Iterations: rep.Iterations}
	if rep.Iterations > 0 {
		hdr.WinRate = float64(rep.Wins) / float64(rep.Iterations)
	}
	return SavePolicy(path, t.Network(), hdr)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/castaways/internal/agents"
)

// ProviderFactory returns the decision provider for one game. It is called
// once per game and may be called from several goroutines at once.
type ProviderFactory func() (agents.DecisionProvider, error)

// Shared returns a factory handing every game the same provider. Only use
// it with providers that are safe for concurrent reads.
func Shared(p agents.DecisionProvider) ProviderFactory {
	return func() (agents.DecisionProvider, error) { return p, nil }
}

// WinRate aggregates a batch of games.
type WinRate struct {
	Games    int           `json:"games"`
	Wins     int           `json:"wins"`
	Stalled  int           `json:"stalled"` // Games cut short by the day limit
	Rate     float64       `json:"rate"`
	MeanDays float64       `json:"mean_days"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

type gameResult struct {
	won     bool
	stalled bool
	days    int
}

// EvaluateWinRate plays games independent games with at most workers running
// at once. Game i uses seed p.Seed+i, so a batch is reproducible whatever
// the scheduling. Training is forced off. opts are passed to every game.
func EvaluateWinRate(ctx context.Context, p Params, factory ProviderFactory, games, workers int, opts ...Option) (WinRate, error) {
	if games < 1 {
		return WinRate{}, fmt.Errorf("%w: games must be at least 1, got %d", ErrInvalidParams, games)
	}
	if err := p.Validate(); err != nil {
		return WinRate{}, err
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	results := make([]gameResult, games)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < games; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			provider, err := factory()
			if err != nil {
				return fmt.Errorf("game %d provider: %w", i, err)
			}
			gp := p.Clone()
			gp.Seed = p.Seed + int64(i)
			gp.Training = false

			g, err := New(gp, provider, opts...)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			for !g.GameOver() {
				if _, err := g.AdvanceDay(); err != nil {
					if errors.Is(err, ErrDayLimit) {
						results[i] = gameResult{stalled: true, days: g.Day()}
						return nil
					}
					return fmt.Errorf("game %d: %w", i, err)
				}
			}
			results[i] = gameResult{won: g.Won(), days: g.Day()}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return WinRate{}, err
	}
	// The group context is always cancelled once Wait returns.
	if err := ctx.Err(); err != nil {
		return WinRate{}, err
	}

	out := WinRate{Games: games, Elapsed: time.Since(start)}
	totalDays := 0
	for _, r := range results {
		if r.won {
			out.Wins++
		}
		if r.stalled {
			out.Stalled++
		}
		totalDays += r.days
	}
	out.Rate = float64(out.Wins) / float64(games)
	out.MeanDays = float64(totalDays) / float64(games)
	return out, nil
}

// Real-time pacing for a Game, used when observers watch a run unfold.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Engine drives a Game forward one day per interval.
type Engine struct {
	Game     *Game
	Speed    float64       // Multiplier: 1.0 = one day per Interval, 0 = paused
	Interval time.Duration // Base day interval (default 1 second)

	running atomic.Bool
}

// NewEngine creates an engine for g with default settings.
func NewEngine(g *Game) *Engine {
	return &Engine{
		Game:     g,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool { return e.running.Load() }

// Run advances the game until it ends, Stop is called, or ctx is done.
// A game cut short by its day limit is not an error here.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "day", e.Game.Day(), "speed", e.Speed)

	for e.running.Load() && !e.Game.GameOver() {
		if e.Speed <= 0 {
			// Paused; check again shortly.
			if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		start := time.Now()

		if _, err := e.Game.AdvanceDay(); err != nil {
			if errors.Is(err, ErrDayLimit) {
				slog.Info("simulation engine hit day limit", "day", e.Game.Day())
				return nil
			}
			return fmt.Errorf("engine: %w", err)
		}

		// Sleep for the remainder of the interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			if err := sleepCtx(ctx, target-elapsed); err != nil {
				return err
			}
		}
	}

	slog.Info("simulation engine stopped", "day", e.Game.Day(), "won", e.Game.Won())
	return nil
}

// Stop halts the loop after the current day.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

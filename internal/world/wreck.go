package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/castaways/internal/economy"
)

// ErrInvalidProbability is returned when a wreck's find chance is outside [0, 1].
var ErrInvalidProbability = errors.New("wreck probability must be within [0, 1]")

// Stockpile is a pile of one equipment kind left in the wreck.
type Stockpile struct {
	Kind  economy.Equipment `json:"kind"`
	Count int               `json:"count"`
}

// Wreck is the salvage site. Stockpiles keep insertion order and a pile is
// dropped as soon as its count reaches zero.
type Wreck struct {
	probability float64
	piles       []Stockpile
	attempts    int
	failures    int
	rng         *rand.Rand
}

// NewWreck creates an empty wreck where each search succeeds with
// probability p.
func NewWreck(p float64, rng *rand.Rand) (*Wreck, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidProbability, p)
	}
	return &Wreck{probability: p, rng: rng}, nil
}

// AddItems places count items of kind in the wreck. A zero count is a no-op.
func (w *Wreck) AddItems(kind economy.Equipment, count int) error {
	if !kind.Valid() {
		return fmt.Errorf("add items: unknown equipment %d", kind)
	}
	if count < 0 {
		return fmt.Errorf("add items: negative %s count %d", kind, count)
	}
	if count == 0 {
		return nil
	}
	for i := range w.piles {
		if w.piles[i].Kind == kind {
			w.piles[i].Count += count
			return nil
		}
	}
	w.piles = append(w.piles, Stockpile{Kind: kind, Count: count})
	return nil
}

// Search makes one salvage attempt for a searcher already holding held.
// On a successful roll a stockpile is drawn uniformly; a kind the searcher
// already has is set aside and the draw repeated over what is left. Every
// call counts one attempt, and a call that yields nothing counts one failure.
func (w *Wreck) Search(held economy.Inventory) (economy.Equipment, bool) {
	w.attempts++

	if len(w.piles) > 0 && w.rng.Float64() < w.probability {
		candidates := make([]int, len(w.piles))
		for i := range candidates {
			candidates[i] = i
		}
		for len(candidates) > 0 {
			pick := w.rng.Intn(len(candidates))
			idx := candidates[pick]
			kind := w.piles[idx].Kind
			if held.Has(kind) {
				candidates = append(candidates[:pick], candidates[pick+1:]...)
				continue
			}
			w.take(idx)
			return kind, true
		}
	}

	w.failures++
	return 0, false
}

func (w *Wreck) take(idx int) {
	w.piles[idx].Count--
	if w.piles[idx].Count == 0 {
		w.piles = append(w.piles[:idx], w.piles[idx+1:]...)
	}
}

// Attempts returns the number of searches made.
func (w *Wreck) Attempts() int { return w.attempts }

// Failures returns the number of searches that found nothing.
func (w *Wreck) Failures() int { return w.failures }

// FailRate returns failures/attempts, or 0 before the first search.
func (w *Wreck) FailRate() float64 {
	if w.attempts == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.attempts)
}

// Interest is a decaying signal of how worthwhile searching still looks.
func (w *Wreck) Interest() float64 {
	return math.Exp(-1.4 * w.FailRate())
}

// Remaining returns how many items of kind are left.
func (w *Wreck) Remaining(kind economy.Equipment) int {
	for _, p := range w.piles {
		if p.Kind == kind {
			return p.Count
		}
	}
	return 0
}

// Stockpiles returns a copy of the non-empty stockpiles in order.
func (w *Wreck) Stockpiles() []Stockpile {
	return append([]Stockpile(nil), w.piles...)
}

// WreckSnapshot is the serialisable state of a Wreck.
type WreckSnapshot struct {
	Buckets     int `json:"buckets"`
	Axes        int `json:"axes"`
	FishingRods int `json:"fishing_rods"`
	Attempts    int `json:"attempts"`
	Failures    int `json:"failures"`
}

// Snapshot captures remaining counts and search statistics.
func (w *Wreck) Snapshot() WreckSnapshot {
	return WreckSnapshot{
		Buckets:     w.Remaining(economy.Bucket),
		Axes:        w.Remaining(economy.Axe),
		FishingRods: w.Remaining(economy.FishingRod),
		Attempts:    w.attempts,
		Failures:    w.failures,
	}
}

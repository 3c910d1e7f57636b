package brain

import (
	"errors"
	"io/fs"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/castaways/internal/agents"
)

// Frozen picks the greedy action of a fixed network. It never learns and is
// safe for concurrent use.
type Frozen struct {
	net      *Network
	header   PolicyHeader
	fallback bool
}

// NewFrozen wraps net. The network is copied.
func NewFrozen(net *Network) (*Frozen, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return &Frozen{net: net.Clone()}, nil
}

// LoadFrozen reads the policy at path. A missing file is not an error: the
// castaways get a randomly initialised network and a warning is logged.
// Corrupt or mismatched files are errors.
func LoadFrozen(path string, seed int64) (*Frozen, error) {
	net, hdr, err := LoadPolicy(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("no trained brain found, using a random network", "path", path)
		return &Frozen{net: NewNetwork(rand.New(rand.NewSource(seed))), fallback: true}, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("brain loaded", "path", path, "saved_at", hdr.SavedAt, "iterations", hdr.Iterations)
	return &Frozen{net: net, header: hdr}, nil
}

func (f *Frozen) ChooseAction(obs agents.Observation) agents.Action {
	return f.net.Best(obs)
}

// Network returns a copy of the underlying network.
func (f *Frozen) Network() *Network { return f.net.Clone() }

// Header returns the header of the loaded policy file, if any.
func (f *Frozen) Header() PolicyHeader { return f.header }

// Fallback reports whether the policy file was missing.
func (f *Frozen) Fallback() bool { return f.fallback }

// Random picks uniformly among all actions.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random provider seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) ChooseAction(agents.Observation) agents.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return agents.Actions[r.rng.Intn(agents.NumActions)]
}

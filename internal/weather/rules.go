package weather

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/castaways/internal/textutil"
)

// Rule decides the weather for a new day.
type Rule interface {
	Next(day int, current Kind) Kind
}

// Rule names accepted by NewRule and the configuration surface.
const (
	RuleUniform = "uniform"
	RuleFixed   = "fixed"
	RuleSimplex = "simplex"
	RuleLive    = "live"
)

// RuleNames lists every transition rule name.
var RuleNames = []string{RuleUniform, RuleFixed, RuleSimplex, RuleLive}

// ErrUnknownRule is returned for an unrecognised rule name.
var ErrUnknownRule = errors.New("unknown weather rule")

// ErrLiveRule is returned when the live rule is requested from NewRule;
// it needs a Client and is built with NewLiveRule instead.
var ErrLiveRule = errors.New("live weather rule needs an API client")

// NewRule builds one of the self-contained rules. fixed always returns
// initial; uniform and simplex draw from rng and seed respectively.
func NewRule(name string, initial Kind, rng *rand.Rand, seed int64) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RuleUniform:
		return Uniform{rng: rng}, nil
	case RuleFixed:
		return Fixed{Kind: initial}, nil
	case RuleSimplex:
		return NewSimplex(seed), nil
	case RuleLive:
		return nil, ErrLiveRule
	}
	return nil, errors.Join(ErrUnknownRule, errors.New(textutil.Unknown("weather rule", name, RuleNames)))
}

// ValidRuleName reports whether name is one of RuleNames (or empty).
func ValidRuleName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return true
	}
	for _, n := range RuleNames {
		if n == name {
			return true
		}
	}
	return false
}

// Uniform draws each day's weather uniformly at random.
type Uniform struct {
	rng *rand.Rand
}

// NewUniform returns a Uniform rule drawing from rng.
func NewUniform(rng *rand.Rand) Uniform {
	return Uniform{rng: rng}
}

func (u Uniform) Next(int, Kind) Kind {
	return Kinds[u.rng.Intn(NumKinds)]
}

// Fixed keeps the same weather forever.
type Fixed struct {
	Kind Kind
}

func (f Fixed) Next(int, Kind) Kind {
	return f.Kind
}

// Simplex walks a one-dimensional noise field so that weather comes in
// spells rather than changing independently each day.
type Simplex struct {
	noise     opensimplex.Noise
	frequency float64
}

// NewSimplex returns a Simplex rule for the given seed.
func NewSimplex(seed int64) *Simplex {
	return &Simplex{
		noise:     opensimplex.NewNormalized(seed),
		frequency: 0.15,
	}
}

func (s *Simplex) Next(day int, _ Kind) Kind {
	v := octaveNoise(s.noise, float64(day), 0, 3, s.frequency, 0.5)
	idx := int(v * NumKinds)
	if idx < 0 {
		idx = 0
	}
	if idx >= NumKinds {
		idx = NumKinds - 1
	}
	return Kinds[idx]
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

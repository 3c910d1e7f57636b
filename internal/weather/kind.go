package weather

import (
	"errors"
	"strings"

	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/textutil"
)

// Kind is the day's weather on the island.
type Kind uint8

const (
	Clear Kind = iota
	Cloudy
	Raining
	Storm
)

// NumKinds is the total number of weather kinds.
const NumKinds = 4

// Kinds lists every weather kind in index order.
var Kinds = [NumKinds]Kind{Clear, Cloudy, Raining, Storm}

var kindNames = []string{"clear", "cloudy", "raining", "storm"}

// Older configuration files use these names.
var aliases = map[string]Kind{
	"blue_sky": Clear,
	"sunny":    Clear,
	"rain":     Raining,
	"rainy":    Raining,
	"stormy":   Storm,
}

// ErrUnknownKind is returned when a weather name cannot be parsed.
var ErrUnknownKind = errors.New("unknown weather")

// String returns the lowercase weather name.
func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Valid reports whether k is a known weather kind.
func (k Kind) Valid() bool {
	return int(k) < NumKinds
}

// Names returns the canonical weather names.
func Names() []string {
	return append([]string(nil), kindNames...)
}

// Parse converts a weather name into a Kind.
func Parse(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, kn := range kindNames {
		if kn == n {
			return Kind(i), nil
		}
	}
	if k, ok := aliases[n]; ok {
		return k, nil
	}
	return 0, errors.Join(ErrUnknownKind, errors.New(textutil.Unknown("weather", name, kindNames)))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Boosts reports whether this weather doubles the yield of fetching r.
// Rain favours water and storms favour wood; foodWeather names the weather
// that favours food, since that pairing is configurable.
func (k Kind) Boosts(r economy.Resource, foodWeather Kind) bool {
	switch r {
	case economy.Water:
		return k == Raining
	case economy.Wood:
		return k == Storm
	case economy.Food:
		return k == foodWeather
	}
	return false
}

// OneHot encodes k as a NumKinds-wide indicator vector.
func (k Kind) OneHot() [NumKinds]float64 {
	var v [NumKinds]float64
	if k.Valid() {
		v[k] = 1
	}
	return v
}

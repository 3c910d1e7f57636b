package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosest(t *testing.T) {
	names := []string{"clear", "cloudy", "raining", "storm"}

	got, ok := Closest("stomr", names)
	assert.True(t, ok)
	assert.Equal(t, "storm", got)

	got, ok = Closest("Rainin", names)
	assert.True(t, ok)
	assert.Equal(t, "raining", got)

	_, ok = Closest("volcano", names)
	assert.False(t, ok)

	_, ok = Closest("", names)
	assert.False(t, ok)
}

func TestClosest_Limits(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}

	got, ok := Closest("wran", levels)
	assert.True(t, ok)
	assert.Equal(t, "warn", got)

	got, ok = Closest("ifno", levels)
	assert.True(t, ok)
	assert.Equal(t, "info", got)

	_, ok = Closest("loud", levels)
	assert.False(t, ok)

	got, ok = Closest("tnd", []string{"and", "or"})
	assert.True(t, ok)
	assert.Equal(t, "and", got)

	_, ok = Closest("nda", []string{"and", "or"})
	assert.False(t, ok)
}

func TestUnknown(t *testing.T) {
	names := []string{"uniform", "fixed"}
	assert.Equal(t, `unknown rule "unifrom" (did you mean "uniform"?)`, Unknown("rule", "unifrom", names))
	assert.Equal(t, `unknown rule "zzz" (want one of uniform, fixed)`, Unknown("rule", "zzz", names))
}

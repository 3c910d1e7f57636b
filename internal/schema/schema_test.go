package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/engine"
)

func TestAllSchemasCompile(t *testing.T) {
	for _, name := range []string{Params, TrainConfig, RunRequest, TestRequest, TrainRequest, GameSummary} {
		_, err := Get(name)
		assert.NoError(t, err, name)
	}
	_, err := Get("nope.schema.json")
	assert.Error(t, err)
}

func TestDefaultParamsMatchSchema(t *testing.T) {
	require.NoError(t, ValidateValue(Params, engine.DefaultParams()))
}

func TestParamsRejected(t *testing.T) {
	for name, doc := range map[string]string{
		"probability":  `{"wreck_probability": 1.5}`,
		"food weather": `{"food_weather": "raining"}`,
		"unknown":      `{"islands": 3}`,
		"factors":      `{"fetch_factors": {"water": []}}`,
		"not json":     `{"players":`,
	} {
		err := Validate(Params, []byte(doc))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestRequests(t *testing.T) {
	assert.NoError(t, Validate(RunRequest, []byte(`{"params":{"players":3},"provider":"random","save":true}`)))
	assert.ErrorIs(t, Validate(RunRequest, []byte(`{"params":{"players":0}}`)), ErrInvalid)

	assert.NoError(t, Validate(TestRequest, []byte(`{"games":10,"workers":2}`)))
	assert.ErrorIs(t, Validate(TestRequest, []byte(`{"games":0}`)), ErrInvalid)

	assert.NoError(t, Validate(TrainRequest, []byte(`{"training":{"iterations":5,"epsilon":0.2}}`)))
	assert.ErrorIs(t, Validate(TrainRequest, []byte(`{"training":{"discount":2}}`)), ErrInvalid)
}

func TestGameSummaryMatchesSchema(t *testing.T) {
	p := engine.DefaultParams()
	p.Players = 4
	p.Initial.Water = 3
	g, err := engine.New(p, agents.Always(agents.SearchWreck))
	require.NoError(t, err)
	sum, err := g.Run()
	require.NoError(t, err)

	require.NoError(t, ValidateValue(GameSummary, sum))
}

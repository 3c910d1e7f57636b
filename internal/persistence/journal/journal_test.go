package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/economy"
	"github.com/talgya/castaways/internal/engine"
)

func TestDayLogger_JournalsGame(t *testing.T) {
	dir := t.TempDir()
	l := NewDayLogger(dir)
	clock := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	p := engine.DefaultParams()
	p.Players = 3
	p.ToLeave = economy.Counts{}
	g, err := engine.New(p, agents.Always(agents.FetchWater))
	require.NoError(t, err)

	var writeErr error
	g.OnDay = l.Hook("run-1", func(err error) { writeErr = err })
	_, err = g.Run()
	require.NoError(t, err)
	require.NoError(t, writeErr)
	require.NoError(t, l.Close())

	entries, err := ReadFile(filepath.Join(dir, "events", "events-2026-03-04-05.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, 1, entries[0].Day.Day)
	assert.Len(t, entries[0].Day.Escaped, 3)
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	clock := time.Date(2026, 3, 4, 5, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	require.NoError(t, w.Write(Entry{RunID: "a"}))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, w.Write(Entry{RunID: "b"}))
	require.NoError(t, w.Close())

	first, err := ReadFile(filepath.Join(dir, "events-2026-03-04-05.jsonl.zst"))
	require.NoError(t, err)
	second, err := ReadFile(filepath.Join(dir, "events-2026-03-04-06.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "a", first[0].RunID)
	assert.Equal(t, "b", second[0].RunID)
}

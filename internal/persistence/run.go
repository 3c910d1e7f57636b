package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/castaways/internal/engine"
)

var (
	// ErrNotFound is returned when a run, policy or meta key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMissingID is returned when saving a run without an id.
	ErrMissingID = errors.New("run id is required")
)

// DefaultListLimit and MaxListLimit bound RecentRuns.
const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

// RunStore is the run history shared by the SQLite and Postgres backends.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunRecord is one finished game as stored.
type RunRecord struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Seed        int64           `json:"seed"`
	Players     int             `json:"players"`
	Won         bool            `json:"won"`
	DaysPlayed  int             `json:"days_played"`
	Survivors   int             `json:"survivors"`
	Deaths      int             `json:"deaths"`
	Provider    string          `json:"provider"`
	ParamsJSON  json.RawMessage `json:"params"`
	SummaryJSON json.RawMessage `json:"summary,omitempty"`
}

// NewRunRecord gives sum a fresh id (written back into sum) and flattens
// it for storage.
func NewRunRecord(sum *engine.GameSummary, p engine.Params, provider string) (RunRecord, error) {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	params, err := json.Marshal(p)
	if err != nil {
		return RunRecord{}, err
	}
	body, err := json.Marshal(sum)
	if err != nil {
		return RunRecord{}, err
	}
	return RunRecord{
		ID:          sum.ID,
		CreatedAt:   time.Now().UTC(),
		Seed:        sum.Seed,
		Players:     p.Players,
		Won:         sum.Won,
		DaysPlayed:  sum.DaysPlayed,
		Survivors:   sum.Survivors(),
		Deaths:      sum.Deaths(),
		Provider:    provider,
		ParamsJSON:  params,
		SummaryJSON: body,
	}, nil
}

// Summary decodes the stored game summary.
func (r RunRecord) Summary() (*engine.GameSummary, error) {
	if len(r.SummaryJSON) == 0 {
		return nil, ErrNotFound
	}
	var sum engine.GameSummary
	if err := json.Unmarshal(r.SummaryJSON, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// ClampLimit applies the list defaults and ceiling to a requested limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

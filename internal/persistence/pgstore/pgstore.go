// Package pgstore keeps run history in Postgres through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talgya/castaways/internal/persistence"
)

// Open connects to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Run is the castaway_runs table.
type Run struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	CreatedAt   time.Time `gorm:"not null;index"`
	Seed        int64     `gorm:"not null"`
	Players     int       `gorm:"not null"`
	Won         bool      `gorm:"not null"`
	DaysPlayed  int       `gorm:"not null"`
	Survivors   int       `gorm:"not null"`
	Deaths      int       `gorm:"not null"`
	Provider    string    `gorm:"not null"`
	ParamsJSON  []byte    `gorm:"type:jsonb;not null"`
	SummaryJSON []byte    `gorm:"type:jsonb"`
}

// TableName implements gorm's tabler.
func (Run) TableName() string { return "castaway_runs" }

// RunRepo implements persistence.RunStore on Postgres.
type RunRepo struct {
	db *gorm.DB
}

// NewRunRepo returns a repository backed by db.
func NewRunRepo(db *gorm.DB) RunRepo {
	return RunRepo{db: db}
}

// Migrate creates or updates the runs table.
func (r RunRepo) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("migrate castaway_runs: %w", err)
	}
	return nil
}

func (r RunRepo) SaveRun(ctx context.Context, rec persistence.RunRecord) error {
	if rec.ID == "" {
		return persistence.ErrMissingID
	}
	row := Run{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt,
		Seed:        rec.Seed,
		Players:     rec.Players,
		Won:         rec.Won,
		DaysPlayed:  rec.DaysPlayed,
		Survivors:   rec.Survivors,
		Deaths:      rec.Deaths,
		Provider:    rec.Provider,
		ParamsJSON:  rec.ParamsJSON,
		SummaryJSON: rec.SummaryJSON,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (r RunRepo) GetRun(ctx context.Context, id string) (persistence.RunRecord, error) {
	var row Run
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persistence.RunRecord{}, fmt.Errorf("run %s: %w", id, persistence.ErrNotFound)
	}
	if err != nil {
		return persistence.RunRecord{}, err
	}
	return row.record(), nil
}

func (r RunRepo) RecentRuns(ctx context.Context, limit int) ([]persistence.RunRecord, error) {
	rows := []Run{}
	err := r.db.WithContext(ctx).
		Omit("summary_json").
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "created_at"}, Desc: true}},
		}).
		Limit(persistence.ClampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]persistence.RunRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.record()
		rec.SummaryJSON = nil
		out = append(out, rec)
	}
	return out, nil
}

func (row Run) record() persistence.RunRecord {
	return persistence.RunRecord{
		ID:          row.ID,
		CreatedAt:   row.CreatedAt.UTC(),
		Seed:        row.Seed,
		Players:     row.Players,
		Won:         row.Won,
		DaysPlayed:  row.DaysPlayed,
		Survivors:   row.Survivors,
		Deaths:      row.Deaths,
		Provider:    row.Provider,
		ParamsJSON:  row.ParamsJSON,
		SummaryJSON: row.SummaryJSON,
	}
}

var _ persistence.RunStore = RunRepo{}

// Package persistence provides SQLite-based storage for finished runs,
// trained policies and small metadata values.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		players INTEGER NOT NULL,
		won INTEGER NOT NULL,
		days_played INTEGER NOT NULL,
		survivors INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		provider TEXT NOT NULL,
		params_json TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		name TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// runRow is the SQLite shape of a RunRecord; timestamps are unix nanoseconds.
type runRow struct {
	ID          string `db:"id"`
	CreatedAt   int64  `db:"created_at"`
	Seed        int64  `db:"seed"`
	Players     int    `db:"players"`
	Won         bool   `db:"won"`
	DaysPlayed  int    `db:"days_played"`
	Survivors   int    `db:"survivors"`
	Deaths      int    `db:"deaths"`
	Provider    string `db:"provider"`
	ParamsJSON  string `db:"params_json"`
	SummaryJSON string `db:"summary_json"`
}

func (r runRow) record() RunRecord {
	return RunRecord{
		ID:          r.ID,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		Seed:        r.Seed,
		Players:     r.Players,
		Won:         r.Won,
		DaysPlayed:  r.DaysPlayed,
		Survivors:   r.Survivors,
		Deaths:      r.Deaths,
		Provider:    r.Provider,
		ParamsJSON:  []byte(r.ParamsJSON),
		SummaryJSON: []byte(r.SummaryJSON),
	}
}

// SaveRun stores rec, replacing any run with the same id.
func (db *DB) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return ErrMissingID
	}
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, created_at, seed, players, won, days_played, survivors, deaths,
		 provider, params_json, summary_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), rec.Seed, rec.Players, rec.Won,
		rec.DaysPlayed, rec.Survivors, rec.Deaths, rec.Provider,
		string(rec.ParamsJSON), string(rec.SummaryJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	slog.Debug("run saved", "id", rec.ID, "won", rec.Won, "days", rec.DaysPlayed)
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var row runRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, err
	}
	return row.record(), nil
}

// RecentRuns returns up to limit runs, newest first, without their summaries.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT id, created_at, seed, players, won,
		days_played, survivors, deaths, provider, params_json, '' AS summary_json
		FROM runs ORDER BY created_at DESC LIMIT ?`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(rows))
	for _, r := range rows {
		rec := r.record()
		rec.SummaryJSON = nil
		out = append(out, rec)
	}
	return out, nil
}

// SavePolicy stores an encoded policy under name.
func (db *DB) SavePolicy(ctx context.Context, name string, data []byte) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO policies (name, saved_at, data) VALUES (?, ?, ?)",
		name, time.Now().UnixNano(), data,
	)
	return err
}

// LoadPolicy returns the encoded policy stored under name.
func (db *DB) LoadPolicy(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := db.conn.GetContext(ctx, &data, "SELECT data FROM policies WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", name, ErrNotFound)
	}
	return data, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}

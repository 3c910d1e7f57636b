// Package journal appends one compressed JSON line per resolved day, rotated
// hourly into events-<hour>.jsonl.zst files.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/castaways/internal/engine"
)

// Writer is a JSONL writer behind a zstd stream. Safe for concurrent use.
type Writer struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter returns a writer creating files named <prefix>-<hour>.jsonl.zst
// under baseDir.
func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one JSON line.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Entry is one journaled day.
type Entry struct {
	RunID string            `json:"run_id"`
	Day   engine.DaySummary `json:"day"`
}

// DayLogger journals the days of many runs.
type DayLogger struct{ w *Writer }

// NewDayLogger writes under dir/events.
func NewDayLogger(dir string) *DayLogger {
	return &DayLogger{w: NewWriter(filepath.Join(dir, "events"), "events")}
}

// Hook returns an engine OnDay hook tagging every day with runID. Write
// failures are reported to onErr, which may be nil.
func (l *DayLogger) Hook(runID string, onErr func(error)) func(engine.DaySummary) {
	return func(d engine.DaySummary) {
		if err := l.WriteDay(runID, d); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

func (l *DayLogger) WriteDay(runID string, d engine.DaySummary) error {
	return l.w.Write(Entry{RunID: runID, Day: d})
}

func (l *DayLogger) Close() error { return l.w.Close() }

// ReadFile decodes every entry of one journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	jd := json.NewDecoder(dec)
	for jd.More() {
		var e Entry
		if err := jd.Decode(&e); err != nil {
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, e)
	}
	return out, nil
}

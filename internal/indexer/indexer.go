package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/betbot/derivaoption/internal/events"
	"github.com/betbot/derivaoption/pkg/logger"
)

// Indexer persists every engine event into a sqlite audit trail.
//
// The audit log is append-only: one row per successful state transition,
// ordered by a monotonic sequence, queryable by event name and id.
type Indexer struct {
	db *sql.DB
}

// Record one audit row.
type Record struct {
	Seq        int64           `json:"seq"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Open opens (or creates) the audit database.
func Open(path string) (*Indexer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir audit db dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	idx := &Indexer{db: db}
	if err := idx.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the database.
func (i *Indexer) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Indexer) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS audit_events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  occurred_at TEXT NOT NULL,
  payload TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_name ON audit_events(name);`,
	}
	for _, stmt := range stmts {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate audit db")
		}
	}
	return nil
}

// Attach subscribes the indexer to an event bus. Events are written
// synchronously inside the publish path; a write failure is logged and
// never propagates back into the engine.
func (i *Indexer) Attach(bus *events.Bus) {
	log := logger.WithComponent("indexer")
	bus.Subscribe(func(e events.Event) {
		if err := i.Append(e); err != nil {
			log.Warnf("audit append failed: %v", err)
		}
	})
}

// Append writes one event.
func (i *Indexer) Append(e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = i.db.ExecContext(ctx,
		`INSERT INTO audit_events(name, occurred_at, payload) VALUES (?, ?, ?)`,
		e.Name(), e.At().UTC().Format(time.RFC3339Nano), string(payload),
	)
	return errors.Wrap(err, "insert audit event")
}

// Recent returns the latest rows, newest first.
func (i *Indexer) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	rows, err := i.db.QueryContext(ctx,
		`SELECT seq, name, occurred_at, payload FROM audit_events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query audit events")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByName returns the latest rows for one event name, newest first.
func (i *Indexer) ByName(ctx context.Context, name string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	rows, err := i.db.QueryContext(ctx,
		`SELECT seq, name, occurred_at, payload FROM audit_events WHERE name = ? ORDER BY seq DESC LIMIT ?`,
		name, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query audit events by name")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Count returns the total number of audit rows.
func (i *Indexer) Count(ctx context.Context) (int64, error) {
	var n int64
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n)
	return n, errors.Wrap(err, "count audit events")
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var at, payload string
		if err := rows.Scan(&r.Seq, &r.Name, &at, &payload); err != nil {
			return nil, errors.Wrap(err, "scan audit row")
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, errors.Wrap(err, "parse audit timestamp")
		}
		r.OccurredAt = t
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

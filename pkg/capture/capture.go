// Package capture stores raw feed lines in SQLite for later replay.
package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/tuffrabit/tinygo-js8-display/pkg/feed"
)

// PollInterval is how often Record polls the feed.
const PollInterval = 5 * time.Millisecond

var ErrClosed = errors.New("capture closed")

// Line is one captured feed line.
type Line struct {
	ID       int64
	Received time.Time
	Type     string // JSON "type" field, empty if the line is not JSON
	Raw      []byte
}

// DB is a capture database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the capture database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	// One writer; keeps :memory: databases on a single connection too.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS lines (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at INTEGER NOT NULL,
		type        TEXT NOT NULL DEFAULT '',
		raw         BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lines_type ON lines(type);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return ErrClosed
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Append stores one line received at at.
func (d *DB) Append(ctx context.Context, at time.Time, raw []byte) error {
	if d.db == nil {
		return ErrClosed
	}
	typ := ""
	if gjson.ValidBytes(raw) {
		typ = gjson.GetBytes(raw, "type").String()
	}
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO lines (received_at, type, raw) VALUES (?, ?, ?)",
		at.UnixMilli(), typ, raw)
	if err != nil {
		return fmt.Errorf("append line: %w", err)
	}
	return nil
}

// Lines returns captured lines in arrival order. An empty typ returns all.
func (d *DB) Lines(ctx context.Context, typ string) ([]Line, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	query := "SELECT id, received_at, type, raw FROM lines ORDER BY id"
	var args []any
	if typ != "" {
		query = "SELECT id, received_at, type, raw FROM lines WHERE type = ? ORDER BY id"
		args = append(args, typ)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		var ms int64
		if err := rows.Scan(&l.ID, &ms, &l.Type, &l.Raw); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Received = time.UnixMilli(ms)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count returns the number of captured lines.
func (d *DB) Count(ctx context.Context) (int, error) {
	if d.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines").Scan(&n)
	return n, err
}

// Record polls r until ctx is done, appending every complete line. Truncated
// lines are skipped. It returns the number of lines stored.
func (d *DB) Record(ctx context.Context, r *feed.Reader, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := r.Connect(time.Now()); err != nil {
		logger.Warn("connection failed, retrying", "addr", r.Address(), "err", err)
	} else {
		logger.Info("connected", "addr", r.Address())
	}
	defer r.Close()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	stored := 0
	for {
		select {
		case <-ctx.Done():
			return stored, nil
		case now := <-ticker.C:
			for _, l := range r.Poll(now) {
				if l.Truncated {
					logger.Warn("oversized line skipped", "bytes", len(l.Data))
					continue
				}
				if err := d.Append(ctx, now, l.Data); err != nil {
					if ctx.Err() != nil {
						return stored, nil
					}
					return stored, err
				}
				stored++
				logger.Debug("captured", "bytes", len(l.Data))
			}
		}
	}
}

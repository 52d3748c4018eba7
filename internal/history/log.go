package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// Record is one logged intent together with its request metadata.
type Record struct {
	ID        int64
	RequestID string
	Input     string
	Intent    schema.Intent
	Source    string
	CreatedAt time.Time
}

// Filter narrows a log listing. Zero values mean "no constraint".
type Filter struct {
	Action    string
	Source    string
	RequestID string
	Since     int64 // intent timestamp, milliseconds
	Limit     int
	Offset    int
}

// Log is the persistent intent log, backed by libSQL (embedded SQLite fork).
type Log struct {
	db *sql.DB
}

// OpenLog opens a libSQL database at the given path. The path should be a
// file URI, e.g. "file:/path/to/intents.db".
func OpenLog(dbPath string) (*Log, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql: %v", err).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &Log{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (l *Log) DB() *sql.DB { return l.db }

// Close closes the database.
func (l *Log) Close() error { return l.db.Close() }

// Migrate runs all pending database migrations.
func (l *Log) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, l.db); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "migrate intent log: %v", err).WithCause(err)
	}
	return nil
}

// Append writes one record. The intent's parameters travel as the JSON
// string they already are.
func (l *Log) Append(ctx context.Context, rec *Record) error {
	params := rec.Intent.Parameters
	if params == "" {
		params = "{}"
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO intents (request_id, input, action, target, parameters, confidence, source, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Input, string(rec.Intent.Action), rec.Intent.Target,
		params, rec.Intent.Confidence, rec.Source, rec.Intent.Timestamp,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append intent: %v", err).WithCause(err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// List returns records matching the filter, newest first.
func (l *Log) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var where []string
	var args []any

	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	if filter.Since > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	query := `SELECT id, request_id, input, action, target, parameters, confidence, source, timestamp, created_at FROM intents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list intents: %v", err).WithCause(err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var action string
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Input, &action, &rec.Intent.Target,
			&rec.Intent.Parameters, &rec.Intent.Confidence, &rec.Source, &rec.Intent.Timestamp,
			&rec.CreatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan intent: %v", err).WithCause(err)
		}
		rec.Intent.Action = schema.Action(action)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count reports the number of logged intents.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intents`).Scan(&n); err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "count intents: %v", err).WithCause(err)
	}
	return n, nil
}

// Prune deletes all but the newest keep rows and reports how many went away.
func (l *Log) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM intents WHERE id NOT IN (SELECT id FROM intents ORDER BY id DESC LIMIT ?)`, keep,
	)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "prune intents: %v", err).WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Vacuum runs VACUUM on the database.
func (l *Log) Vacuum(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "VACUUM"); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "vacuum intent log: %v", err).WithCause(err)
	}
	return nil
}

package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

// Driver names accepted by SQLiteConfig.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite usage store.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// Driver selects the database/sql driver: "sqlite" (modernc.org/sqlite,
	// the default) or "sqlite3" (github.com/mattn/go-sqlite3, needs cgo).
	Driver string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore persists usage records in a SQLite database in WAL mode.
type SQLiteStore struct {
	db        *sql.DB
	config    SQLiteConfig
	logger    *slog.Logger
	insert    *sql.Stmt
	closeOnce sync.Once
}

// NewSQLiteStore opens (or creates) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, newStorageError("sqlite", "open", errors.New("db path cannot be empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCgo {
		return nil, newStorageError("sqlite", "open", fmt.Errorf("unknown driver %q (supported: sqlite, sqlite3)", cfg.Driver))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer; one connection also keeps the
	// pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: logger.With("component", "usage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("usage store opened", "path", cfg.Path, "driver", cfg.Driver)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}

	var err error
	s.insert, err = s.db.Prepare(insertRecord)
	if err != nil {
		return newStorageError("sqlite", "prepare", err)
	}
	return nil
}

// Store inserts a record.
func (s *SQLiteStore) Store(ctx context.Context, r *Record) error {
	if r == nil {
		return newStorageError("sqlite", "store", errors.New("record cannot be nil"))
	}
	if r.ID == "" {
		return newStorageError("sqlite", "store", errors.New("record id cannot be empty"))
	}

	var errVal any
	if r.Error != "" {
		errVal = r.Error
	}

	_, err := s.insert.ExecContext(ctx,
		r.ID, r.RequestID, r.Time.UnixNano(),
		r.Provider, r.Model, r.Origin,
		r.Streaming, r.Thinking,
		r.PromptTokens, r.CompletionTokens, r.TotalTokens, r.Estimated,
		r.Retries, r.Latency.Milliseconds(),
		r.Status, errVal,
	)
	if err != nil {
		return newStorageError("sqlite", "store", err)
	}
	return nil
}

// buildWhereClause turns a query into a WHERE clause and its arguments.
func buildWhereClause(q *Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var conds []string
	var args []any
	if q.Provider != "" {
		conds = append(conds, "provider = ?")
		args = append(args, q.Provider)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		conds = append(conds, "recorded_at < ?")
		args = append(args, q.Until.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns matching records, newest first.
func (s *SQLiteStore) Query(ctx context.Context, q *Query) ([]*Record, error) {
	where, args := buildWhereClause(q)
	query := selectRecords + where + " ORDER BY recorded_at DESC"
	if q != nil && q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var (
			r         Record
			recorded  int64
			latencyMS int64
			errVal    sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.RequestID, &recorded,
			&r.Provider, &r.Model, &r.Origin,
			&r.Streaming, &r.Thinking,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Estimated,
			&r.Retries, &latencyMS,
			&r.Status, &errVal,
		); err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		r.Time = time.Unix(0, recorded)
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		r.Error = errVal.String
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Totals aggregates matching records per provider.
func (s *SQLiteStore) Totals(ctx context.Context, q *Query) ([]Totals, error) {
	where, args := buildWhereClause(q)
	rows, err := s.db.QueryContext(ctx, selectTotals+where+" GROUP BY provider ORDER BY provider", args...)
	if err != nil {
		return nil, newStorageError("sqlite", "totals", err)
	}
	defer rows.Close()

	out := []Totals{}
	for rows.Next() {
		var t Totals
		if err := rows.Scan(
			&t.Provider, &t.Requests, &t.Failures, &t.Retries,
			&t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &t.EstimatedRequests,
		); err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "totals", err)
	}
	return out, nil
}

// DeleteBefore removes records older than cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM usage_records WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.insert != nil {
			s.insert.Close()
		}
		err = s.db.Close()
	})
	return err
}

var _ Store = (*SQLiteStore)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prooftamil/ime-gateway/internal/storage"
)

// Store is a SQLite implementation of UsageStore
type Store struct {
	db *sql.DB
}

var _ storage.UsageStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			status INTEGER NOT NULL,
			suggestions INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_client ON usage_records(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Record(ctx context.Context, rec *storage.UsageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO usage_records
	          (request_id, client_id, outcome, status, suggestions, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.RequestID, rec.ClientID, rec.Outcome, rec.Status, rec.Suggestions,
		rec.Duration.Nanoseconds(), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, opts.ClientID)
	}

	query := `SELECT request_id, client_id, outcome, status, suggestions, duration_ns, created_at
	          FROM usage_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*storage.UsageRecord
	for rows.Next() {
		var rec storage.UsageRecord
		var durationNS int64

		if err := rows.Scan(&rec.RequestID, &rec.ClientID, &rec.Outcome, &rec.Status,
			&rec.Suggestions, &durationNS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Duration = time.Duration(durationNS)

		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *Store) Summary(ctx context.Context) ([]storage.ClientUsage, error) {
	query := `SELECT client_id, COUNT(*),
	                 SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END)
	          FROM usage_records
	          WHERE client_id != ''
	          GROUP BY client_id
	          ORDER BY client_id`

	rows, err := s.db.QueryContext(ctx, query, storage.OutcomeSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	var out []storage.ClientUsage
	for rows.Next() {
		var u storage.ClientUsage
		if err := rows.Scan(&u.ClientID, &u.Requests, &u.Succeeded); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		out = append(out, u)
	}

	return out, rows.Err()
}

func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM usage_records WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"remux/internal/batch"
	"remux/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion gates the on-disk layout. A database written by a newer
// build is refused rather than silently misread.
const schemaVersion = 1

// ErrSchemaTooNew signals a database created by a later release.
var ErrSchemaTooNew = errors.New("history database schema is newer than this build")

// BatchRecord is one finished batch as stored on disk.
type BatchRecord struct {
	BatchID    string
	FinishedAt time.Time
	Outcome    string
	Total      int
	Done       int
	Failed     int
	Items      []ItemRecord
}

// ItemRecord is one file's final result within a recorded batch.
type ItemRecord struct {
	SourcePath  string
	DisplayName string
	State       string
	OutputPath  string
	ErrorDetail string
}

// Store persists finished batches in a SQLite database. Only terminal
// outcomes are written; in-flight state never touches disk.
type Store struct {
	db       *sql.DB
	keepLast int
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithKeepLast bounds retention to the most recent n batches. Zero or
// negative disables pruning.
func WithKeepLast(n int) Option {
	return func(s *Store) {
		s.keepLast = n
	}
}

// WithLogger attaches a logger. A nil logger falls back to no-op.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens or creates the history database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if store.logger == nil {
		store.logger = logging.NewNop()
	}
	store.logger = logging.WithComponent(store.logger, "history")

	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}

	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version.Int64 > schemaVersion:
		return fmt.Errorf("%w (found %d, supported %d)", ErrSchemaTooNew, version.Int64, schemaVersion)
	}
	return nil
}

// RecordBatch writes one finished batch and its items, then prunes old
// rows past the retention bound. It satisfies batch.Recorder.
func (s *Store) RecordBatch(ctx context.Context, snapshot batch.Snapshot) error {
	if snapshot.BatchID == "" || len(snapshot.Items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	done, failed := 0, 0
	for _, item := range snapshot.Items {
		switch item.State {
		case batch.ItemDone:
			done++
		case batch.ItemFailed:
			failed++
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (batch_id, finished_at, outcome, total, done, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.BatchID,
		s.now().UTC().Format(time.RFC3339),
		string(snapshot.Outcome),
		len(snapshot.Items),
		done,
		failed,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for position, item := range snapshot.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batch_items (batch_id, position, source_path, display_name, state, output_path, error_detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snapshot.BatchID,
			position,
			item.SourcePath,
			item.DisplayName,
			string(item.State),
			item.OutputPath,
			item.ErrorDetail,
		)
		if err != nil {
			return fmt.Errorf("insert batch item: %w", err)
		}
	}

	if s.keepLast > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM batches WHERE batch_id NOT IN (
				SELECT batch_id FROM batches ORDER BY finished_at DESC, batch_id LIMIT ?
			)`, s.keepLast)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	s.logger.Debug("batch recorded",
		slog.String(logging.FieldBatchID, snapshot.BatchID),
		slog.String("outcome", string(snapshot.Outcome)))
	return nil
}

// List returns the most recent batches, newest first, with their items in
// submission order. limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]BatchRecord, error) {
	query := `SELECT batch_id, finished_at, outcome, total, done, failed FROM batches ORDER BY finished_at DESC, batch_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []BatchRecord
	for rows.Next() {
		var record BatchRecord
		var finishedAt string
		if err := rows.Scan(&record.BatchID, &finishedAt, &record.Outcome, &record.Total, &record.Done, &record.Failed); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		record.FinishedAt, err = time.Parse(time.RFC3339, finishedAt)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	for index := range records {
		items, err := s.itemsFor(ctx, records[index].BatchID)
		if err != nil {
			return nil, err
		}
		records[index].Items = items
	}
	return records, nil
}

func (s *Store) itemsFor(ctx context.Context, batchID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, display_name, state, output_path, error_detail
		 FROM batch_items WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		if err := rows.Scan(&item.SourcePath, &item.DisplayName, &item.State, &item.OutputPath, &item.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan batch item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

var _ batch.Recorder = (*Store)(nil)

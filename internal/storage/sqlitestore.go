package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteSourceStore keeps source entities as JSON payloads in a single
// SQLite table keyed by (source_type, source_id).
type SQLiteSourceStore struct {
	conn  *sql.DB
	clock func() time.Time
}

// OpenSQLiteSourceStore opens or creates the database at path.
func OpenSQLiteSourceStore(path string, clock func() time.Time) (*SQLiteSourceStore, error) {
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sources database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	s := &SQLiteSourceStore{conn: conn, clock: clock}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing sources schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSourceStore) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS source_rows (
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (source_type, source_id)
		);
		CREATE INDEX IF NOT EXISTS idx_source_rows_type ON source_rows(source_type);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteSourceStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Load returns every row of st in insertion order.
func (s *SQLiteSourceStore) Load(ctx context.Context, st models.SourceType) ([]models.Source, error) {
	k, err := kindFor(st)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT payload FROM source_rows WHERE source_type = ? ORDER BY rowid`, string(st))
	if err != nil {
		return nil, fmt.Errorf("querying %s rows: %w", st, err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", st, err)
		}
		src, err := k.decodeJSON([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", st, err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Save replaces all rows of st.
func (s *SQLiteSourceStore) Save(ctx context.Context, st models.SourceType, items []models.Source) error {
	if _, err := kindFor(st); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_rows WHERE source_type = ?`, string(st)); err != nil {
		return fmt.Errorf("clearing %s rows: %w", st, err)
	}
	for _, src := range items {
		if src.SourceType() != st {
			return fmt.Errorf("saving %s rows: got %s entity", st, src.SourceType())
		}
		if err := s.upsert(ctx, tx, src); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Upsert inserts or replaces a single entity.
func (s *SQLiteSourceStore) Upsert(ctx context.Context, src models.Source) error {
	return s.upsert(ctx, s.conn, src)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteSourceStore) upsert(ctx context.Context, db execer, src models.Source) error {
	payload, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", src.SourceType(), src.SourceKey(), err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO source_rows (source_type, source_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_type, source_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(src.SourceType()), src.SourceKey(), string(payload), s.clock().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing %s %s: %w", src.SourceType(), src.SourceKey(), err)
	}
	return nil
}

// Resolve marks the entity done, read or contacted according to its type.
func (s *SQLiteSourceStore) Resolve(ctx context.Context, st models.SourceType, sourceID string) error {
	return s.update(ctx, st, sourceID, resolveAction(s.clock()))
}

// Snooze hides the entity until the given time. Calendar events cannot be snoozed.
func (s *SQLiteSourceStore) Snooze(ctx context.Context, st models.SourceType, sourceID string, until time.Time) error {
	return s.update(ctx, st, sourceID, snoozeAction(until))
}

func (s *SQLiteSourceStore) update(ctx context.Context, st models.SourceType, sourceID string, apply action) error {
	k, err := kindFor(st)
	if err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM source_rows WHERE source_type = ? AND source_id = ?`,
		string(st), sourceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", st, sourceID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s %s: %w", st, sourceID, err)
	}

	src, err := k.decodeJSON([]byte(payload))
	if err != nil {
		return fmt.Errorf("decoding %s %s: %w", st, sourceID, err)
	}
	updated, err := apply(src)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, updated); err != nil {
		return err
	}
	return tx.Commit()
}

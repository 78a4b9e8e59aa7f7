// Package history keeps a record of every hashtag generation run in SQLite.
//
// Store is safe for concurrent use. Connections are limited to one so that writes from
// concurrent tool calls queue instead of failing with SQLITE_BUSY.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DefaultListLimit is used when List or Search is called with a non-positive limit.
const DefaultListLimit = 20

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("history record not found")

// Record is one stored run.
type Record struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Input       string          `json:"input"`
	Keywords    []string        `json:"keywords"`
	Hashtags    []string        `json:"hashtags"`
	TotalUnique int             `json:"total_unique"`
	Duration    float64         `json:"duration_seconds"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store persists Records.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open creates or opens the database at path. The parent directory is created when missing.
// ":memory:" gives a private in-memory database.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	logger.WithField("path", path).Debug("History database ready")
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		input TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '[]',
		hashtags TEXT NOT NULL DEFAULT '[]',
		total_unique INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		payload TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts rec, assigning an ID and creation time when they are unset. It returns the stored record.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(rec.Input) == "" {
		return Record{}, errors.New("history record input is required")
	}

	keywords, err := json.Marshal(nonNil(rec.Keywords))
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode keywords: %w", err)
	}
	hashtags, err := json.Marshal(nonNil(rec.Hashtags))
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode hashtags: %w", err)
	}

	var payload sql.NullString
	if len(rec.Payload) > 0 {
		payload = sql.NullString{String: string(rec.Payload), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, input, keywords, hashtags, total_unique, duration, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Input, string(keywords), string(hashtags),
		rec.TotalUnique, rec.Duration, payload, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save history record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"id": rec.ID, "input": rec.Input}).Debug("Saved history record")
	return rec, nil
}

// Get returns the record with id, including its payload.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, input, keywords, hashtags, total_unique, duration, payload, created_at
		FROM runs WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns the newest records first, without payloads.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, input, keywords, hashtags, total_unique, duration, NULL, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return collect(rows, s.logger)
}

// Delete removes the record with id. Unknown IDs return ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Search fuzzy-matches query against each run's input and hashtags and returns the best
// matches first. An empty query behaves like List.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, input, keywords, hashtags, total_unique, duration, NULL, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	all, err := collect(rows, s.logger)
	if err != nil {
		return nil, err
	}

	matches := fuzzy.FindFrom(query, searchable(all))
	out := make([]Record, 0, min(limit, len(matches)))
	for _, m := range matches {
		out = append(out, all[m.Index])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// searchable adapts records to fuzzy.Source.
type searchable []Record

func (r searchable) String(i int) string {
	return r[i].Input + " " + strings.Join(r[i].Hashtags, " ")
}

func (r searchable) Len() int {
	return len(r)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                Record
		keywords, hashtags string
		payload            sql.NullString
		created            int64
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Input, &keywords, &hashtags,
		&rec.TotalUnique, &rec.Duration, &payload, &created); err != nil {
		return Record{}, err
	}

	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return Record{}, fmt.Errorf("corrupt keywords for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(hashtags), &rec.Hashtags); err != nil {
		return Record{}, fmt.Errorf("corrupt hashtags for %s: %w", rec.ID, err)
	}
	if payload.Valid {
		rec.Payload = json.RawMessage(payload.String)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

func collect(rows *sql.Rows, logger *logrus.Logger) ([]Record, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close history rows")
		}
	}()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

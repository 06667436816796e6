// Package store persists transcriptions in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("transcription not found")

const DefaultListLimit = 100

const selectColumns = `SELECT id, text, timestamp, duration, language, model FROM transcriptions`

type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, logger)
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without migrating it.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, now: time.Now, logger: logger.Named("store")}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			duration REAL,
			language TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_timestamp ON transcriptions(timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate transcriptions: %w", err)
		}
	}
	return nil
}

func (s *Store) Save(ctx context.Context, in NewTranscription) (Transcription, error) {
	timestamp := in.Timestamp
	if timestamp == 0 {
		timestamp = s.now().UnixMilli()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (text, timestamp, duration, language, model) VALUES (?, ?, ?, ?, ?)`,
		in.Text, timestamp, nullableFloat(in.Duration), in.Language, in.Model,
	)
	if err != nil {
		return Transcription{}, fmt.Errorf("insert transcription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Transcription{}, fmt.Errorf("get last insert id: %w", err)
	}

	s.logger.Debug("transcription saved", zap.Int64("id", id), zap.Int("chars", len(in.Text)))
	return Transcription{
		ID:        id,
		Text:      in.Text,
		Timestamp: timestamp,
		Duration:  in.Duration,
		Language:  in.Language,
		Model:     in.Model,
	}, nil
}

// List returns up to limit transcriptions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Search returns transcriptions whose text contains query, case-insensitively,
// newest first. Wildcards in query are matched literally.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Transcription, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE text LIKE ? ESCAPE '\' ORDER BY timestamp DESC, id DESC LIMIT ?`,
		"%"+escapeLike(query)+"%", normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("search transcriptions: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *Store) Get(ctx context.Context, id int64) (Transcription, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	t, err := scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transcription{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return Transcription{}, fmt.Errorf("get transcription %d: %w", id, err)
	}
	return t, nil
}

// UpdateText replaces the whole text of a transcription. Every other field is
// left untouched.
func (s *Store) UpdateText(ctx context.Context, id int64, text string) (Transcription, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE transcriptions SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return Transcription{}, fmt.Errorf("update transcription %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Transcription{}, fmt.Errorf("update transcription %d: %w", id, err)
	}
	if affected == 0 {
		return Transcription{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	s.logger.Debug("transcription updated", zap.Int64("id", id))
	return s.Get(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (Transcription, error) {
	var (
		t        Transcription
		duration sql.NullFloat64
	)
	if err := row.Scan(&t.ID, &t.Text, &t.Timestamp, &duration, &t.Language, &t.Model); err != nil {
		return Transcription{}, err
	}
	if duration.Valid {
		t.Duration = Seconds(duration.Float64)
	}
	return t, nil
}

func scanRows(rows *sql.Rows) ([]Transcription, error) {
	out := make([]Transcription, 0)
	for rows.Next() {
		t, err := scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcriptions: %w", err)
	}
	return out, nil
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

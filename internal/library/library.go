// Package library stores generated songs in SQLite, newest first, keeping
// at most a configured number of them.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/sqlite"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

// DefaultMaxSongs is the cap used when Open is given max <= 0.
const DefaultMaxSongs = 50

var schema = []string{
	`CREATE TABLE IF NOT EXISTS songs (
		id           TEXT    PRIMARY KEY,
		created_at   INTEGER NOT NULL,
		request_json TEXT    NOT NULL,
		draft_json   TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS songs_created_at ON songs (created_at DESC)`,
}

// Song is a saved generation.
type Song struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Request   song.Request `json:"input"`
	Draft     song.Draft   `json:"result"`
}

// Library is a song store. It is safe for concurrent use.
type Library struct {
	db  *sql.DB
	max int
}

// Open opens or creates the library at path. ":memory:" gives a private
// in-memory library.
func Open(ctx context.Context, path string, max int) (*Library, error) {
	if max <= 0 {
		max = DefaultMaxSongs
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.NewIO("mkdir", dir, err)
			}
		}
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if err := sqlite.Migrate(ctx, db, schema...); err != nil {
		db.Close()
		return nil, err
	}
	return &Library{db: db, max: max}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Add saves s, assigning an ID and creation time when unset, and drops the
// oldest songs beyond the cap. It returns the stored song.
func (l *Library) Add(ctx context.Context, s Song) (Song, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.CreatedAt = s.CreatedAt.UTC().Truncate(time.Millisecond)

	reqJSON, err := json.Marshal(s.Request)
	if err != nil {
		return Song{}, fmt.Errorf("encode request: %w", err)
	}
	draftJSON, err := json.Marshal(s.Draft)
	if err != nil {
		return Song{}, fmt.Errorf("encode draft: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Song{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO songs (id, created_at, request_json, draft_json) VALUES (?, ?, ?, ?)`,
		s.ID, s.CreatedAt.UnixMilli(), string(reqJSON), string(draftJSON)); err != nil {
		return Song{}, fmt.Errorf("insert song: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM songs WHERE id NOT IN (
			SELECT id FROM songs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, l.max); err != nil {
		return Song{}, fmt.Errorf("trim library: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Song{}, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

// List returns all songs, newest first.
func (l *Library) List(ctx context.Context) ([]Song, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, created_at, request_json, draft_json FROM songs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// Get returns the song with id, or a NotFoundError.
func (l *Library) Get(ctx context.Context, id string) (Song, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, created_at, request_json, draft_json FROM songs WHERE id = ?`, id)
	s, err := scan(row)
	if err == sql.ErrNoRows {
		return Song{}, errors.NewNotFound("song", id)
	}
	return s, err
}

// Delete removes the song with id. Deleting a missing song is a
// NotFoundError.
func (l *Library) Delete(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("song", id)
	}
	return nil
}

// Len returns the number of stored songs.
func (l *Library) Len(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Song, error) {
	var (
		s                  Song
		created            int64
		reqJSON, draftJSON string
	)
	if err := sc.Scan(&s.ID, &created, &reqJSON, &draftJSON); err != nil {
		return Song{}, err
	}
	s.CreatedAt = time.UnixMilli(created).UTC()
	if err := json.Unmarshal([]byte(reqJSON), &s.Request); err != nil {
		return Song{}, fmt.Errorf("decode song %s request: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(draftJSON), &s.Draft); err != nil {
		return Song{}, fmt.Errorf("decode song %s draft: %w", s.ID, err)
	}
	return s, nil
}

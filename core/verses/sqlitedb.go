package verses

import (
	"context"
	"database/sql"
	"os"

	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/sqlite"
)

// SQLite dataset layout. meta holds a "translation" row.
var datasetSchema = []string{
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS verses (
		book    TEXT    NOT NULL,
		chapter INTEGER NOT NULL,
		verse   INTEGER NOT NULL,
		text    TEXT    NOT NULL,
		PRIMARY KEY (book, chapter, verse)
	)`,
}

// LoadSQLite reads a dataset written by WriteSQLite. Verses keep their
// insertion order.
func LoadSQLite(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	translation := translationFromName(path)
	var label string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'translation'`).Scan(&label)
	switch {
	case err == nil && label != "":
		translation = label
	case err != nil && err != sql.ErrNoRows:
		return nil, &errors.ParseError{Format: "SQLite", Path: path, Message: err.Error(), Err: err}
	}

	rows, err := db.QueryContext(ctx, `SELECT book, chapter, verse, text FROM verses ORDER BY rowid`)
	if err != nil {
		return nil, &errors.ParseError{Format: "SQLite", Path: path, Message: err.Error(), Err: err}
	}
	defer rows.Close()

	var vs []Verse
	for rows.Next() {
		var v Verse
		if err := rows.Scan(&v.Book, &v.Chapter, &v.Number, &v.Text); err != nil {
			return nil, errors.NewIO("read", path, err)
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	return build(translation, vs)
}

// WriteSQLite writes s to a new SQLite dataset at path, replacing any
// verses already there.
func WriteSQLite(ctx context.Context, path string, s *Store) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	if err := sqlite.Migrate(ctx, db, datasetSchema...); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM verses`); err != nil {
		return errors.NewIO("write", path, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('translation', ?)`, s.Translation()); err != nil {
		return errors.NewIO("write", path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verses (book, chapter, verse, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	defer stmt.Close()

	for _, v := range s.verses {
		if _, err := stmt.ExecContext(ctx, v.Book, v.Chapter, v.Number, v.Text); err != nil {
			return errors.NewIO("write", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIO("commit", path, err)
	}
	return nil
}

// Package store keeps named images of a PrimeLISP root environment in a
// SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	lisp "github.com/adumont/PrimeLISP/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	name       TEXT PRIMARY KEY,
	saved_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE TABLE IF NOT EXISTS bindings (
	image TEXT    NOT NULL REFERENCES images(name) ON DELETE CASCADE,
	pos   INTEGER NOT NULL,
	name  TEXT    NOT NULL,
	value TEXT    NOT NULL,
	PRIMARY KEY (image, pos)
);`

// ErrNotFound is returned when an image does not exist.
var ErrNotFound = errors.New("image not found")

// Store is a SQLite-backed lisp.Snapshotter.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ lisp.Snapshotter = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the image name with bindings in a single transaction.
// Values are stored in printed form.
func (s *Store) Save(name string, bindings []lisp.Binding) error {
	if name == "" {
		return fmt.Errorf("save: missing image name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	stmts := []struct {
		sql  string
		args []any
	}{
		{"DELETE FROM bindings WHERE image = ?", []any{name}},
		{"INSERT OR REPLACE INTO images (name) VALUES (?)", []any{name}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.sql, st.args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("save %s: %w", name, err)
		}
	}

	ins, err := tx.Prepare("INSERT INTO bindings (image, pos, name, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save %s: %w", name, err)
	}
	defer ins.Close()
	for i, b := range bindings {
		if _, err := ins.Exec(name, i, b.Name, b.Value.String()); err != nil {
			tx.Rollback()
			return fmt.Errorf("save %s: binding %d (%s): %w", name, i, b.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Load returns the bindings of image name, front to back.
func (s *Store) Load(name string) ([]lisp.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved string
	err := s.db.QueryRow("SELECT saved_at FROM images WHERE name = ?", name).Scan(&saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	rows, err := s.db.Query("SELECT name, value FROM bindings WHERE image = ? ORDER BY pos", name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer rows.Close()

	out := make([]lisp.Binding, 0)
	for rows.Next() {
		var bname, text string
		if err := rows.Scan(&bname, &text); err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		val, err := lisp.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("load %s: binding %s: %w", name, bname, err)
		}
		out = append(out, lisp.Binding{Name: bname, Value: val})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return out, nil
}

// List returns the saved image names in order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name FROM images ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list images: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Drop deletes image name and its bindings.
func (s *Store) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM bindings WHERE image = ?", name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	res, err := s.db.Exec("DELETE FROM images WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("drop %s: %w", name, ErrNotFound)
	}
	return nil
}

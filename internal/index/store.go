package index

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the on-disk summary cache, one row per indexed file keyed by path
// with the modification time it was indexed at.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS files (
		path    TEXT PRIMARY KEY,
		mtime   INTEGER NOT NULL,
		summary TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached summary when the stored modification time matches.
func (s *Store) Get(path string, mtime int64) (*FileSummary, bool) {
	var storedMtime int64
	var raw string
	err := s.db.QueryRow(`SELECT mtime, summary FROM files WHERE path = ?`, path).
		Scan(&storedMtime, &raw)
	if err != nil || storedMtime != mtime {
		return nil, false
	}
	var sum FileSummary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, false
	}
	return &sum, true
}

func (s *Store) Put(sum *FileSummary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO files (path, mtime, summary) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, summary = excluded.summary`,
		sum.Path, sum.ModTime, string(raw))
	return err
}

func (s *Store) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// Package history keeps a sqlite log of play attempts.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/playback"
)

// Entry is one recorded play attempt.
type Entry struct {
	ID    int64     `json:"id"`
	Kind  string    `json:"kind"`
	Index int       `json:"index"`
	Asset string    `json:"asset"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Count is a per-asset play tally.
type Count struct {
	Asset string `json:"asset"`
	Plays int    `json:"plays"`
}

// Store records playback events in sqlite. It implements playback.Recorder.
type Store struct {
	db  *sql.DB
	log logging.LeveledLogger
}

// Open opens or creates the database at path.
func Open(path string, log logging.LeveledLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

func createTables(db *sql.DB) error {
	const plays = `
    CREATE TABLE IF NOT EXISTS plays (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        kind TEXT NOT NULL,
        idx INTEGER NOT NULL,
        asset TEXT NOT NULL,
        error TEXT NOT NULL DEFAULT '',
        at INTEGER NOT NULL
    );
    `
	if _, err := db.Exec(plays); err != nil {
		return fmt.Errorf("create plays table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts one event and returns its row id. Superseded loads are not
// plays and are skipped with id 0.
func (s *Store) Add(e playback.Event) (int64, error) {
	if errors.Is(e.Err, playback.ErrSuperseded) {
		return 0, nil
	}
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	res, err := s.db.Exec("INSERT INTO plays (kind, idx, asset, error, at) VALUES (?, ?, ?, ?, ?)",
		e.Kind, e.Index, e.ID, msg, e.At.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert play: %w", err)
	}
	return res.LastInsertId()
}

// Record implements playback.Recorder. Failures are logged, never
// propagated into playback.
func (s *Store) Record(e playback.Event) {
	if _, err := s.Add(e); err != nil {
		s.log.Warnf("History: %v", err)
	}
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query("SELECT id, kind, idx, asset, error, at FROM plays ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query plays: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Index, &e.Asset, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("scan play: %w", err)
		}
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Top returns the most played assets of kind, successful plays only.
func (s *Store) Top(kind string, limit int) ([]Count, error) {
	rows, err := s.db.Query(`
		SELECT asset, COUNT(*) AS n
		FROM plays
		WHERE kind = ? AND error = ''
		GROUP BY asset
		ORDER BY n DESC, asset
		LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query top %s: %w", kind, err)
	}
	defer rows.Close()

	counts := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Asset, &c.Plays); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

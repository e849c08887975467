// Package userdata stores per-reader state in a local SQLite database:
// the favorites shelf, last reading positions, per-scroll notes, and the
// reader preferences document.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open() instead of sql.Open() so the driver matching the build mode
// is used.
package userdata

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

// DriverType returns "purego" for modernc.org/sqlite, "cgo" for
// mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// Favorite is one pinned work on the favorites shelf. Rank preserves the
// caller-chosen shelf order.
type Favorite struct {
	WorkID  string    `json:"work_id"`
	Title   string    `json:"title"`
	Author  string    `json:"author,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Position is the saved reading position for one work.
type Position struct {
	WorkID    string    `json:"work_id"`
	Scroll    int       `json:"scroll"`
	Fragment  string    `json:"fragment,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is one reading note attached to a scroll.
type Note struct {
	ID        string    `json:"id"`
	WorkID    string    `json:"work_id"`
	Scroll    int       `json:"scroll"`
	Quote     string    `json:"quote,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a handle to the user-data database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the user-data database at path and
// ensures its schema is in place. The parent directory is created when
// missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer; one pooled connection serializes
	// concurrent handlers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS favorites (
		work_id  TEXT PRIMARY KEY,
		title    TEXT NOT NULL,
		author   TEXT NOT NULL DEFAULT '',
		rank     INTEGER NOT NULL DEFAULT 0,
		added_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		work_id    TEXT PRIMARY KEY,
		scroll     INTEGER NOT NULL,
		fragment   TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		work_id    TEXT NOT NULL,
		scroll     INTEGER NOT NULL,
		quote      TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notes_by_work ON notes (work_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		id   INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Timestamps are stored as RFC 3339 UTC strings so they sort
// lexicographically and survive both drivers unchanged.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Favorites returns the favorites shelf in shelf order.
func (s *Store) Favorites() ([]Favorite, error) {
	rows, err := s.db.Query("SELECT work_id, title, author, added_at FROM favorites ORDER BY rank, added_at")
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer rows.Close()

	var favs []Favorite
	for rows.Next() {
		var f Favorite
		var added string
		if err := rows.Scan(&f.WorkID, &f.Title, &f.Author, &added); err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		if f.AddedAt, err = parseTime(added); err != nil {
			return nil, fmt.Errorf("parsing favorite timestamp: %w", err)
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// AddFavorite appends a work to the end of the shelf, or refreshes its
// title and author if it is already pinned.
func (s *Store) AddFavorite(f Favorite) error {
	if f.WorkID == "" {
		return cerrors.NewValidation("work_id", "must not be empty")
	}
	if f.AddedAt.IsZero() {
		f.AddedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO favorites (work_id, title, author, rank, added_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(rank), -1) + 1 FROM favorites), ?)
		 ON CONFLICT(work_id) DO UPDATE SET title = excluded.title, author = excluded.author`,
		f.WorkID, f.Title, f.Author, formatTime(f.AddedAt))
	if err != nil {
		return fmt.Errorf("adding favorite %s: %w", f.WorkID, err)
	}
	return nil
}

// RemoveFavorite unpins a work from the shelf.
func (s *Store) RemoveFavorite(workID string) error {
	res, err := s.db.Exec("DELETE FROM favorites WHERE work_id = ?", workID)
	if err != nil {
		return fmt.Errorf("removing favorite %s: %w", workID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NewNotFound("favorite", workID)
	}
	return nil
}

// ReplaceFavorites replaces the whole shelf with the given entries,
// preserving their order.
func (s *Store) ReplaceFavorites(favs []Favorite) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replacing favorites: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM favorites"); err != nil {
		return fmt.Errorf("replacing favorites: %w", err)
	}
	for i, f := range favs {
		if f.WorkID == "" {
			return cerrors.NewValidation("work_id", "must not be empty")
		}
		if f.AddedAt.IsZero() {
			f.AddedAt = time.Now()
		}
		if _, err := tx.Exec(
			"INSERT INTO favorites (work_id, title, author, rank, added_at) VALUES (?, ?, ?, ?, ?)",
			f.WorkID, f.Title, f.Author, i, formatTime(f.AddedAt)); err != nil {
			return fmt.Errorf("replacing favorites: %w", err)
		}
	}
	return tx.Commit()
}

// Position returns the saved reading position for a work.
func (s *Store) Position(workID string) (Position, error) {
	var p Position
	var updated string
	err := s.db.QueryRow(
		"SELECT work_id, scroll, fragment, updated_at FROM positions WHERE work_id = ?",
		workID).Scan(&p.WorkID, &p.Scroll, &p.Fragment, &updated)
	if err == sql.ErrNoRows {
		return Position{}, cerrors.NewNotFound("position", workID)
	}
	if err != nil {
		return Position{}, fmt.Errorf("reading position for %s: %w", workID, err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return Position{}, fmt.Errorf("parsing position timestamp: %w", err)
	}
	return p, nil
}

// Positions returns all saved reading positions, most recent first.
func (s *Store) Positions() ([]Position, error) {
	rows, err := s.db.Query("SELECT work_id, scroll, fragment, updated_at FROM positions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		var updated string
		if err := rows.Scan(&p.WorkID, &p.Scroll, &p.Fragment, &updated); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		if p.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing position timestamp: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePosition upserts the reading position for a work. The stored
// timestamp is always the save time.
func (s *Store) SavePosition(p Position) error {
	if p.WorkID == "" {
		return cerrors.NewValidation("work_id", "must not be empty")
	}
	if p.Scroll < 1 {
		return cerrors.NewValidation("scroll", "must be at least 1")
	}
	_, err := s.db.Exec(
		`INSERT INTO positions (work_id, scroll, fragment, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(work_id) DO UPDATE SET
		   scroll = excluded.scroll, fragment = excluded.fragment, updated_at = excluded.updated_at`,
		p.WorkID, p.Scroll, p.Fragment, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving position for %s: %w", p.WorkID, err)
	}
	return nil
}

// AddNote stores a new note and returns it with its generated id and
// creation time filled in.
func (s *Store) AddNote(n Note) (Note, error) {
	if n.WorkID == "" {
		return Note{}, cerrors.NewValidation("work_id", "must not be empty")
	}
	if n.Content == "" {
		return Note{}, cerrors.NewValidation("content", "must not be empty")
	}
	if n.Scroll < 1 {
		n.Scroll = 1
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		"INSERT INTO notes (id, work_id, scroll, quote, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.WorkID, n.Scroll, n.Quote, n.Content, formatTime(n.CreatedAt))
	if err != nil {
		return Note{}, fmt.Errorf("adding note: %w", err)
	}
	return n, nil
}

// Notes returns notes newest first. An empty workID lists every note.
func (s *Store) Notes(workID string) ([]Note, error) {
	query := "SELECT id, work_id, scroll, quote, content, created_at FROM notes"
	args := []any{}
	if workID != "" {
		query += " WHERE work_id = ?"
		args = append(args, workID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var created string
		if err := rows.Scan(&n.ID, &n.WorkID, &n.Scroll, &n.Quote, &n.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing note timestamp: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note by id.
func (s *Store) DeleteNote(id string) error {
	res, err := s.db.Exec("DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NewNotFound("note", id)
	}
	return nil
}

// Preferences returns the stored preferences document, or "{}" when none
// has been saved yet.
func (s *Store) Preferences() ([]byte, error) {
	var body string
	err := s.db.QueryRow("SELECT body FROM preferences WHERE id = 1").Scan(&body)
	if err == sql.ErrNoRows {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	return []byte(body), nil
}

// SavePreferences replaces the preferences document. The body must be a
// JSON object.
func (s *Store) SavePreferences(body []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return cerrors.NewValidation("preferences", "must be a JSON object")
	}
	_, err := s.db.Exec(
		"INSERT INTO preferences (id, body) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET body = excluded.body",
		string(body))
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// MergePreferences overlays the patch's top-level keys onto the stored
// document and returns the merged result.
func (s *Store) MergePreferences(patch []byte) ([]byte, error) {
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, cerrors.NewValidation("preferences", "must be a JSON object")
	}
	current, err := s.Preferences()
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		doc = map[string]json.RawMessage{}
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	for k, v := range overlay {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("merging preferences: %w", err)
	}
	if err := s.SavePreferences(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

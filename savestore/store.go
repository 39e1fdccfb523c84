// Package savestore keeps named save slots for story sessions in SQLite.
// Each slot holds one encoded snapshot, keyed by the story fingerprint and
// the slot name; saving to an existing slot replaces it with a new revision.
package savestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/quill/vm"
	"github.com/chazu/quill/vm/persist"
)

var log = commonlog.GetLogger("quill.savestore")

// ErrSlotNotFound indicates the requested slot doesn't exist.
var ErrSlotNotFound = errors.New("save slot not found")

// Slot describes a stored save.
type Slot struct {
	Story    string
	Name     string
	Revision string
	Turn     int
	SavedAt  time.Time
	Size     int
}

// Store handles SQLite storage for save slots.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path. The special path ":memory:"
// keeps everything in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating save directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS save_slots (
		story    TEXT NOT NULL,
		slot     TEXT NOT NULL,
		revision TEXT NOT NULL,
		turn     INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		data     BLOB NOT NULL,
		PRIMARY KEY (story, slot)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened save store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Put stores encoded snapshot data in a slot, replacing any previous save.
// The story key is taken from the snapshot envelope.
func (s *Store) Put(ctx context.Context, name string, turn int, data []byte) (Slot, error) {
	if name == "" {
		return Slot{}, errors.New("slot name is empty")
	}
	env, err := persist.UnmarshalEnvelope(data)
	if err != nil {
		return Slot{}, err
	}

	slot := Slot{
		Story:    env.Fingerprint,
		Name:     name,
		Revision: uuid.NewString(),
		Turn:     turn,
		SavedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Size:     len(data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO save_slots (story, slot, revision, turn, saved_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		slot.Story, slot.Name, slot.Revision, slot.Turn, slot.SavedAt.UnixMilli(), data,
	)
	if err != nil {
		return Slot{}, fmt.Errorf("saving slot: %w", err)
	}
	log.Infof("saved slot %q revision %s (%d bytes)", name, slot.Revision, len(data))
	return slot, nil
}

// Get returns the encoded snapshot stored in a slot.
func (s *Store) Get(ctx context.Context, story, name string) ([]byte, Slot, error) {
	var data []byte
	var savedAt int64
	slot := Slot{Story: story, Name: name}
	err := s.db.QueryRowContext(ctx,
		"SELECT revision, turn, saved_at, data FROM save_slots WHERE story = ? AND slot = ?",
		story, name,
	).Scan(&slot.Revision, &slot.Turn, &savedAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Slot{}, fmt.Errorf("%w: %q", ErrSlotNotFound, name)
		}
		return nil, Slot{}, fmt.Errorf("querying slot: %w", err)
	}
	slot.SavedAt = time.UnixMilli(savedAt).UTC()
	slot.Size = len(data)
	return data, slot, nil
}

// List returns the slots saved for a story, most recent first.
func (s *Store) List(ctx context.Context, story string) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slot, revision, turn, saved_at, length(data) FROM save_slots WHERE story = ? ORDER BY saved_at DESC, slot",
		story,
	)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		slot := Slot{Story: story}
		var savedAt int64
		if err := rows.Scan(&slot.Name, &slot.Revision, &slot.Turn, &savedAt, &slot.Size); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slot.SavedAt = time.UnixMilli(savedAt).UTC()
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Delete removes a slot.
func (s *Store) Delete(ctx context.Context, story, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM save_slots WHERE story = ? AND slot = ?", story, name)
	if err != nil {
		return fmt.Errorf("deleting slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrSlotNotFound, name)
	}
	return nil
}

// SaveSession snapshots a session into a slot.
func (s *Store) SaveSession(ctx context.Context, name string, sess *vm.Session) (Slot, error) {
	data, err := persist.Save(sess)
	if err != nil {
		return Slot{}, err
	}
	return s.Put(ctx, name, sess.TurnIndex()+1, data)
}

// LoadSession restores a slot saved for the session's story.
func (s *Store) LoadSession(ctx context.Context, name string, sess *vm.Session) (Slot, error) {
	data, slot, err := s.Get(ctx, sess.Story().Fingerprint(), name)
	if err != nil {
		return Slot{}, err
	}
	if err := persist.Load(sess, data); err != nil {
		return Slot{}, err
	}
	log.Debugf("loaded slot %q revision %s", name, slot.Revision)
	return slot, nil
}

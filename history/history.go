// Package history persists finished dictation sessions in a local badger
// database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.aimuz.me/ghostwriter/internal/types"
)

// DefaultTTL is how long a session record is kept.
const DefaultTTL = 30 * 24 * time.Hour

var (
	// ErrEmpty is returned by Last when no session has produced text.
	ErrEmpty = errors.New("history: no transcription yet")
	// ErrLocked is returned by Open when another process holds the database.
	ErrLocked = errors.New("history: database in use by another process")
)

// badger reports a held directory lock only through its message.
const lockedMessage = "Another process is using this Badger database"

var prefix = []byte("session:")

// Store is a session history backed by badger.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens the store at path. An empty path opens an in-memory store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), lockedMessage) {
			return nil, fmt.Errorf("open history %s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &Store{db: db, ttl: DefaultTTL}, nil
}

func key(rec types.SessionRecord) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", prefix, rec.StartedAt.UnixNano(), rec.ID)
}

// Record stores rec. Records are ordered by start time.
func (s *Store) Record(rec types.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key(rec), data).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]types.SessionRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []types.SessionRecord
	err := s.scan(func(rec types.SessionRecord) bool {
		out = append(out, rec)
		return len(out) < n
	})
	return out, err
}

// Last returns the most recent record that carries text.
func (s *Store) Last() (types.SessionRecord, error) {
	var found *types.SessionRecord
	err := s.scan(func(rec types.SessionRecord) bool {
		if rec.Text == "" {
			return true
		}
		found = &rec
		return false
	})
	if err != nil {
		return types.SessionRecord{}, err
	}
	if found == nil {
		return types.SessionRecord{}, ErrEmpty
	}
	return *found, nil
}

// scan visits records newest first until fn returns false.
func (s *Store) scan(fn func(types.SessionRecord) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			var rec types.SessionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				slog.Warn("skip history record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if !fn(rec) {
				return nil
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's own logging to slog.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any)   { slog.Error(fmt.Sprintf(f, v...), "component", "badger") }
func (badgerLogger) Warningf(f string, v ...any) { slog.Warn(fmt.Sprintf(f, v...), "component", "badger") }
func (badgerLogger) Infof(f string, v ...any)    { slog.Debug(fmt.Sprintf(f, v...), "component", "badger") }
func (badgerLogger) Debugf(f string, v ...any)   { slog.Debug(fmt.Sprintf(f, v...), "component", "badger") }

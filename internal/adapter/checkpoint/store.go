// Package checkpoint remembers which forecast series have already been
// delivered so an unchanged upstream document is not shipped twice.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "series/"

// Record is stored for every delivered series digest.
type Record struct {
	RunID    string    `json:"run_id"`
	MarkedAt time.Time `json:"marked_at"`
}

// Store is a BadgerDB-backed set of series digests.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the store in dir. An empty dir keeps the store in memory, which
// only deduplicates within the life of the process.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Seen reports whether digest has been marked.
func (s *Store) Seen(digest string) (bool, error) {
	_, found, err := s.Lookup(digest)
	return found, err
}

// Lookup returns the record stored for digest, if any.
func (s *Store) Lookup(digest string) (Record, bool, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read checkpoint %s: %w", digest, err)
	}
	return rec, true, nil
}

// Mark records digest as delivered by runID.
func (s *Store) Mark(digest, runID string) error {
	data, err := json.Marshal(Record{RunID: runID, MarkedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+digest), data)
	})
	if err != nil {
		return fmt.Errorf("write checkpoint %s: %w", digest, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

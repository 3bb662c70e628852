// Package bolt persists the seed registry. On disk it uses the raft bolt
// store as a key/value file; without a data directory it falls back to the
// raft in-memory store.
package bolt

import (
    "errors"
    "io"
    "os"
    "path/filepath"

    "github.com/hashicorp/raft"
    raftboltdb "github.com/hashicorp/raft-boltdb"
)

const (
    // FileName is the database file created inside the data directory.
    FileName = "seeds.db"

    seedsKey = "seeds"
    revKey   = "seeds_rev"
)

// Store saves the registry snapshot under a single key and counts saves.
type Store struct {
    kv     raft.StableStore
    closer io.Closer
}

// Open creates dir when needed and opens the bolt file inside it.
func Open(dir string) (*Store, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil { return nil, err }
    b, err := raftboltdb.NewBoltStore(filepath.Join(dir, FileName))
    if err != nil { return nil, err }
    return &Store{kv: b, closer: b}, nil
}

// NewMemory returns a store that lives as long as the process.
func NewMemory() *Store {
    return &Store{kv: raft.NewInmemStore()}
}

// Load returns the saved snapshot, or nil when nothing was saved.
func (s *Store) Load() ([]byte, error) {
    buf, err := s.kv.Get([]byte(seedsKey))
    if isNotFound(err) { return nil, nil }
    if err != nil { return nil, err }
    return buf, nil
}

// Save replaces the snapshot.
func (s *Store) Save(buf []byte) error {
    if err := s.kv.Set([]byte(seedsKey), buf); err != nil { return err }
    rev, err := s.Revision()
    if err != nil { return err }
    return s.kv.SetUint64([]byte(revKey), rev+1)
}

// Revision is the number of saves so far.
func (s *Store) Revision() (uint64, error) {
    rev, err := s.kv.GetUint64([]byte(revKey))
    if isNotFound(err) { return 0, nil }
    return rev, err
}

func (s *Store) Close() error {
    if s.closer == nil { return nil }
    return s.closer.Close()
}

// isNotFound matches the missing-key error of both backends; the in-memory
// store does not export its sentinel.
func isNotFound(err error) bool {
    if err == nil { return false }
    return errors.Is(err, raftboltdb.ErrKeyNotFound) || err.Error() == raftboltdb.ErrKeyNotFound.Error()
}

package dataset

import (
	"errors"
	"sync/atomic"
)

// ErrNoSnapshot indicates the store has never published a snapshot.
var ErrNoSnapshot = errors.New("dataset: no snapshot loaded")

// Store publishes dataset snapshots atomically. Reload builds the new
// snapshot off to the side and swaps the pointer only once it is complete,
// so concurrent readers always see a fully built mapping.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish installs a snapshot built elsewhere, assigning it the next
// version number.
func (st *Store) Publish(s *Snapshot) *Snapshot {
	s.Version = st.version.Add(1)
	st.current.Store(s)
	return s
}

// Reload loads the record files, builds a fresh snapshot, and publishes it.
// On error the previous snapshot stays in place.
func (st *Store) Reload(usersFile, hotelsFile string) (*Snapshot, error) {
	s, err := Load(usersFile, hotelsFile)
	if err != nil {
		return nil, err
	}
	return st.Publish(s), nil
}

// Snapshot returns the current snapshot, or an error if none was loaded.
func (st *Store) Snapshot() (*Snapshot, error) {
	s := st.current.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

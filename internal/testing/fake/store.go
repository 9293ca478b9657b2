package fake

import (
	"go.dedis.ch/escrow/core/store"
)

// InMemorySnapshot is a fake implementation of a store snapshot.
//
// - implements store.Snapshot
type InMemorySnapshot struct {
	store.Snapshot

	values    map[string][]byte
	ErrRead   error
	ErrWrite  error
	ErrDelete error
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{
		values: make(map[string][]byte),
	}
}

// NewBadSnapshot creates a new empty snapshot that will always return an error.
func NewBadSnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{
		values:    make(map[string][]byte),
		ErrRead:   fakeErr,
		ErrWrite:  fakeErr,
		ErrDelete: fakeErr,
	}
}

// Len returns the number of keys set in the snapshot.
func (snap *InMemorySnapshot) Len() int {
	return len(snap.values)
}

// Get implements store.Snapshot.
func (snap *InMemorySnapshot) Get(key []byte) ([]byte, error) {
	if snap.ErrRead != nil {
		return nil, snap.ErrRead
	}

	return snap.values[string(key)], nil
}

// Set implements store.Snapshot.
func (snap *InMemorySnapshot) Set(key, value []byte) error {
	if snap.ErrWrite != nil {
		return snap.ErrWrite
	}

	snap.values[string(key)] = value

	return nil
}

// Delete implements store.Snapshot.
func (snap *InMemorySnapshot) Delete(key []byte) error {
	if snap.ErrDelete != nil {
		return snap.ErrDelete
	}

	delete(snap.values, string(key))

	return nil
}

// Store is a fake implementation of store.Store that stages the writes in a
// copy of the values.
//
// - implements store.Store
type Store struct {
	Snap *InMemorySnapshot
	err  error
}

// NewStore returns a fake store backed by an empty snapshot.
func NewStore() *Store {
	return &Store{Snap: NewSnapshot()}
}

// NewBadStore returns a fake store that fails every view and update.
func NewBadStore() *Store {
	return &Store{Snap: NewSnapshot(), err: fakeErr}
}

// View implements store.Store.
func (s *Store) View(fn func(store.Readable) error) error {
	if s.err != nil {
		return s.err
	}

	return fn(s.Snap)
}

// Update implements store.Store.
func (s *Store) Update(fn func(store.Snapshot) error) error {
	if s.err != nil {
		return s.err
	}

	staged := NewSnapshot()
	for k, v := range s.Snap.values {
		staged.values[k] = v
	}

	err := fn(staged)
	if err != nil {
		return err
	}

	s.Snap.values = staged.values

	return nil
}

// Package store defines the primitives of a simple key/value storage.
//
// A store gives access to snapshots. A read-only view can be taken at any
// time, and an update is applied atomically: either every write of the
// callback is committed, or none of them is.
package store

// Readable is the interface for a readable store.
type Readable interface {
	// Get returns the value of the key, or nil if the key does not exist.
	Get(key []byte) ([]byte, error)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte) error

	Delete(key []byte) error
}

// Snapshot is a state of the store that can be read and write independently. A
// write is applied only to the snapshot reference.
type Snapshot interface {
	Readable
	Writable
}

// Store is the interface of a storage that applies updates atomically.
type Store interface {
	// View executes the callback with a read-only state of the store.
	View(fn func(Readable) error) error

	// Update executes the callback with a snapshot of the store. The writes are
	// committed only if the callback returns nil, otherwise they are discarded.
	Update(fn func(Snapshot) error) error
}

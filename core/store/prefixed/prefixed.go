// Package prefixed implements snapshots that isolate the keys of a component
// in its own namespace.
//
// Keys are hashed together with the prefix so that two namespaces can never
// collide, whatever the length of their keys.
package prefixed

import (
	"encoding/binary"

	"go.dedis.ch/escrow/core/store"
	"golang.org/x/crypto/sha3"
)

type readable struct {
	store.Readable
	prefix []byte
}

type writable struct {
	store.Writable
	prefix []byte
}

type snapshot struct {
	*writable
	*readable
}

// NewSnapshot creates a new prefixed Snapshot.
func NewSnapshot(prefix string, snap store.Snapshot) store.Snapshot {
	p := []byte(prefix)
	return &snapshot{
		&writable{snap, p},
		&readable{snap, p},
	}
}

// NewReadable creates a new prefixed Readable.
func NewReadable(prefix string, r store.Readable) store.Readable {
	p := []byte(prefix)
	return &readable{r, p}
}

// Get implements store.Readable.
func (s *readable) Get(key []byte) ([]byte, error) {
	return s.Readable.Get(NewPrefixedKey(s.prefix, key))
}

// Set implements store.Writable.
func (s *writable) Set(key []byte, value []byte) error {
	return s.Writable.Set(NewPrefixedKey(s.prefix, key), value)
}

// Delete implements store.Writable.
func (s *writable) Delete(key []byte) error {
	return s.Writable.Delete(NewPrefixedKey(s.prefix, key))
}

// NewPrefixedKey creates a 256bit (hashed) key from a prefix and a base key.
func NewPrefixedKey(prefix, key []byte) []byte {
	h := sha3.New256()

	length := []byte{0, 0}
	binary.LittleEndian.PutUint16(length, uint16(len(prefix)))

	h.Write(length)
	h.Write(prefix)

	length = []byte{0, 0}
	binary.LittleEndian.PutUint16(length, uint16(len(key)))

	h.Write(length)
	h.Write(key)

	return h.Sum(nil)
}

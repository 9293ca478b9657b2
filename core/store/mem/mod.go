// Package mem implements an in-memory store on top of a B-tree.
//
// Updates are written to an overlay tree that remembers both the new values and
// the deleted keys. The overlay is merged into the main tree only when the
// update callback succeeds, which makes every update atomic.
package mem

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"go.dedis.ch/escrow/core/store"
	"golang.org/x/xerrors"
)

// degree is the B-tree degree used for the main and the overlay trees.
const degree = 8

// item is an entry of the tree. A deleted item only exists in an overlay.
//
// - implements btree.Item
type item struct {
	key     []byte
	value   []byte
	deleted bool
}

// Less implements btree.Item. It orders the items by key.
func (i item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(item).key) < 0
}

// Store is an in-memory store. Updates are serialized, views can run in
// parallel of each other.
//
// - implements store.Store
type Store struct {
	sync.RWMutex

	tree *btree.BTree
}

// NewStore returns a new empty store.
func NewStore() *Store {
	return &Store{
		tree: btree.New(degree),
	}
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	s.RLock()
	defer s.RUnlock()

	return s.tree.Len()
}

// View implements store.Store. It executes the callback with a read-only view
// of the store.
func (s *Store) View(fn func(store.Readable) error) error {
	s.RLock()
	defer s.RUnlock()

	return fn(reader{tree: s.tree})
}

// Update implements store.Store. It executes the callback on an overlay of the
// store and merges the overlay only if the callback succeeds.
func (s *Store) Update(fn func(store.Snapshot) error) error {
	s.Lock()
	defer s.Unlock()

	snap := newSnapshot(reader{tree: s.tree})

	err := fn(snap)
	if err != nil {
		return xerrors.Errorf("update aborted: %w", err)
	}

	snap.writeTo(s.tree)

	return nil
}

// reader provides read access to a tree.
//
// - implements store.Readable
type reader struct {
	tree *btree.BTree
}

// Get implements store.Readable. It returns a copy of the value, or nil if the
// key is not set.
func (r reader) Get(key []byte) ([]byte, error) {
	res := r.tree.Get(item{key: key})
	if res == nil {
		return nil, nil
	}

	return clone(res.(item).value), nil
}

// snapshot is a staged state on top of a parent. Writes stay in the overlay
// until they are written to a tree.
//
// - implements store.Snapshot
type snapshot struct {
	parent  store.Readable
	overlay *btree.BTree
}

func newSnapshot(parent store.Readable) *snapshot {
	return &snapshot{
		parent:  parent,
		overlay: btree.New(degree),
	}
}

// Get implements store.Readable. It looks up the overlay first and falls back
// to the parent.
func (s *snapshot) Get(key []byte) ([]byte, error) {
	res := s.overlay.Get(item{key: key})
	if res != nil {
		it := res.(item)
		if it.deleted {
			return nil, nil
		}

		return clone(it.value), nil
	}

	val, err := s.parent.Get(key)
	if err != nil {
		return nil, xerrors.Errorf("parent: %v", err)
	}

	return val, nil
}

// Set implements store.Writable. It stages the value for the key.
func (s *snapshot) Set(key, value []byte) error {
	s.overlay.ReplaceOrInsert(item{key: clone(key), value: clone(value)})

	return nil
}

// Delete implements store.Writable. It stages the deletion of the key.
func (s *snapshot) Delete(key []byte) error {
	s.overlay.ReplaceOrInsert(item{key: clone(key), deleted: true})

	return nil
}

func (s *snapshot) writeTo(tree *btree.BTree) {
	s.overlay.Ascend(func(i btree.Item) bool {
		it := i.(item)

		if it.deleted {
			tree.Delete(item{key: it.key})
		} else {
			tree.ReplaceOrInsert(it)
		}

		return true
	})
}

func clone(buf []byte) []byte {
	if buf == nil {
		return nil
	}

	return append([]byte{}, buf...)
}

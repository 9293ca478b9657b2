// This file contains the overlay in which an operation of the ledger prepares
// its writes before they reach the snapshot.

package ledger

import (
	"bytes"

	"github.com/google/btree"
	"go.dedis.ch/escrow/core/store"
	"golang.org/x/xerrors"
)

const stagingDegree = 4

// entry is a staged write. A deleted entry removes the key.
//
// - implements btree.Item
type entry struct {
	key     []byte
	value   []byte
	deleted bool
}

// Less implements btree.Item.
func (e entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(entry).key) < 0
}

// staging is a snapshot that keeps the writes in an overlay until they are
// committed to the parent.
//
// - implements store.Snapshot
type staging struct {
	parent  store.Snapshot
	overlay *btree.BTree
}

func newStaging(parent store.Snapshot) *staging {
	return &staging{
		parent:  parent,
		overlay: btree.New(stagingDegree),
	}
}

// Get implements store.Readable. The overlay has priority over the parent.
func (s *staging) Get(key []byte) ([]byte, error) {
	res := s.overlay.Get(entry{key: key})
	if res != nil {
		e := res.(entry)
		if e.deleted {
			return nil, nil
		}

		return append([]byte{}, e.value...), nil
	}

	return s.parent.Get(key)
}

// Set implements store.Writable.
func (s *staging) Set(key, value []byte) error {
	s.overlay.ReplaceOrInsert(entry{
		key:   append([]byte{}, key...),
		value: append([]byte{}, value...),
	})

	return nil
}

// Delete implements store.Writable.
func (s *staging) Delete(key []byte) error {
	s.overlay.ReplaceOrInsert(entry{key: append([]byte{}, key...), deleted: true})

	return nil
}

// commit writes the overlay to the parent, the values first and the deletions
// after. When a write fails, the keys already written get their previous value
// back before the error is returned.
func (s *staging) commit() error {
	var applied []entry
	var err error

	for _, deletions := range []bool{false, true} {
		s.overlay.Ascend(func(i btree.Item) bool {
			e := i.(entry)
			if e.deleted != deletions {
				return true
			}

			var prev []byte
			prev, err = s.parent.Get(e.key)
			if err != nil {
				err = xerrors.Errorf("failed to read: %v", err)
				return false
			}

			err = apply(s.parent, e)
			if err != nil {
				return false
			}

			applied = append(applied, entry{key: e.key, value: prev, deleted: prev == nil})

			return true
		})

		if err != nil {
			rerr := s.revert(applied)
			if rerr != nil {
				return xerrors.Errorf("%v, rollback failed: %v", err, rerr)
			}

			return err
		}
	}

	return nil
}

func (s *staging) revert(applied []entry) error {
	for i := len(applied) - 1; i >= 0; i-- {
		err := apply(s.parent, applied[i])
		if err != nil {
			return err
		}
	}

	return nil
}

func apply(w store.Writable, e entry) error {
	if e.deleted {
		err := w.Delete(e.key)
		if err != nil {
			return xerrors.Errorf("failed to delete: %v", err)
		}

		return nil
	}

	err := w.Set(e.key, e.value)
	if err != nil {
		return xerrors.Errorf("failed to set: %v", err)
	}

	return nil
}

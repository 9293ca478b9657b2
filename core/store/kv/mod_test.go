package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/core/store"
	"golang.org/x/xerrors"
)

func TestDB_UpdateAndView(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "escrow-core-kv")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	db, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	defer db.Close()

	err = db.View(func(r store.Readable) error {
		value, err := r.Get([]byte("ping"))
		require.NoError(t, err)
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(snap store.Snapshot) error {
		return snap.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View(func(r store.Readable) error {
		value, err := r.Get([]byte("ping"))
		require.NoError(t, err)
		require.Equal(t, []byte("pong"), value)

		return nil
	})
	require.NoError(t, err)
}

func TestDB_UpdateAborted(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "escrow-core-kv")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	db, err := New(filepath.Join(dir, "test.db"), WithBucket([]byte("test")))
	require.NoError(t, err)

	defer db.Close()

	err = db.Update(func(snap store.Snapshot) error {
		return snap.Set([]byte("A"), []byte{1})
	})
	require.NoError(t, err)

	err = db.Update(func(snap store.Snapshot) error {
		require.NoError(t, snap.Set([]byte("B"), []byte{2}))
		require.NoError(t, snap.Delete([]byte("A")))

		return xerrors.New("oops")
	})
	require.EqualError(t, err, "update aborted: oops")

	err = db.View(func(r store.Readable) error {
		value, err := r.Get([]byte("A"))
		require.NoError(t, err)
		require.Equal(t, []byte{1}, value)

		value, err = r.Get([]byte("B"))
		require.NoError(t, err)
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)
}

func TestDB_Reopen(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "escrow-core-kv")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "test.db")

	db, err := New(path)
	require.NoError(t, err)

	err = db.Update(func(snap store.Snapshot) error {
		return snap.Set([]byte("A"), []byte{1})
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)

	defer db.Close()

	err = db.View(func(r store.Readable) error {
		value, err := r.Get([]byte("A"))
		require.NoError(t, err)
		require.Equal(t, []byte{1}, value)

		return nil
	})
	require.NoError(t, err)
}

func TestDB_BadPath(t *testing.T) {
	_, err := New("/unknown/dir/test.db")
	require.Error(t, err)
	require.Regexp(t, "^failed to open db:", err.Error())
}

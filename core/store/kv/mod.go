// Package kv implements a persistent store using bbolt as the engine
// (https://github.com/etcd-io/bbolt).
//
// Every key lives in a single bucket. An update runs inside a bbolt writable
// transaction, which is rolled back when the callback fails.
package kv

import (
	"go.dedis.ch/escrow/core/store"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// DefaultBucket is the name of the bucket used when none is provided.
var DefaultBucket = []byte("escrow")

// DB is an adapter of the store abstraction using bbolt.
//
// - implements store.Store
type DB struct {
	bolt   *bbolt.DB
	bucket []byte
}

// Option is the type of option to create a database.
type Option func(*DB)

// WithBucket is an option to set the bucket name.
func WithBucket(name []byte) Option {
	return func(db *DB) {
		db.bucket = name
	}
}

// New opens the database at the given path, or creates it.
func New(path string, opts ...Option) (*DB, error) {
	db := &DB{
		bucket: DefaultBucket,
	}

	for _, opt := range opts {
		opt(db)
	}

	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	db.bolt = bdb

	return db, nil
}

// View implements store.Store. It opens a read-only transaction. A missing
// bucket behaves like an empty one.
func (db *DB) View(fn func(store.Readable) error) error {
	return db.bolt.View(func(txn *bbolt.Tx) error {
		return fn(boltBucket{bucket: txn.Bucket(db.bucket)})
	})
}

// Update implements store.Store. It opens a read-write transaction that is
// committed only if the callback succeeds.
func (db *DB) Update(fn func(store.Snapshot) error) error {
	return db.bolt.Update(func(txn *bbolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists(db.bucket)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		err = fn(boltBucket{bucket: bucket})
		if err != nil {
			return xerrors.Errorf("update aborted: %w", err)
		}

		return nil
	})
}

// Close closes the database. Any view or update call will result in an error
// after this function is called.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// boltBucket is the adapter of a bbolt bucket to a snapshot.
//
// - implements store.Snapshot
type boltBucket struct {
	bucket *bbolt.Bucket
}

// Get implements store.Readable. It returns a copy of the value associated to
// the key, as bbolt only guarantees the memory during the transaction.
func (b boltBucket) Get(key []byte) ([]byte, error) {
	if b.bucket == nil {
		return nil, nil
	}

	value := b.bucket.Get(key)
	if value == nil {
		return nil, nil
	}

	return append([]byte{}, value...), nil
}

// Set implements store.Writable. It sets the provided key to the value.
func (b boltBucket) Set(key, value []byte) error {
	err := b.bucket.Put(key, value)
	if err != nil {
		return xerrors.Errorf("failed to put: %v", err)
	}

	return nil
}

// Delete implements store.Writable. It deletes the key from the bucket.
func (b boltBucket) Delete(key []byte) error {
	err := b.bucket.Delete(key)
	if err != nil {
		return xerrors.Errorf("failed to delete: %v", err)
	}

	return nil
}

/*
Package storage provides a generic BoltDB-backed key/value helper used by
the pipeline's job cache.

Where the data this module's predecessor stored was a closed set of typed
cluster records, the pipeline's job cache keys and values are caller-defined
byte blobs (gob-encoded CacheEntry records),
so this package drops the typed per-record CRUD methods in favor of one
generic bucket-scoped Get/Put/Delete/ForEach surface built on the same
bbolt transaction idiom.
*/
package storage

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a thin wrapper around a bbolt database, scoped to named buckets.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureBucket creates bucket if it does not already exist.
func (s *Store) EnsureBucket(bucket string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
}

// Put writes value under key in bucket, creating the bucket if needed.
func (s *Store) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Get reads the value stored under key in bucket. Returns ErrNotFound
// (wrapped) if bucket or key does not exist.
func (s *Store) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: bucket %q", ErrNotFound, bucket)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %q/%q", ErrNotFound, bucket, key)
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// Delete removes key from bucket. Deleting a missing key is not an error.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// ForEach calls fn with every key/value pair in bucket, in bbolt's
// byte-lexicographic key order. A missing bucket yields zero calls.
func (s *Store) ForEach(bucket string, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const boltFileName = "data.db"

var bucketData = []byte("data")

// BoltStore keeps every entry in a single bbolt bucket inside the store
// directory. bbolt keeps keys sorted, so Scan yields ordinal order.
type BoltStore struct {
	db      *bolt.DB
	mapSize int64

	// File path to the database file.
	Path string
}

func (s *BoltStore) Initialize(path string, mapSize int64) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return errors.Wrapf(err, "mkdir %s", path)
	}
	s.Path = filepath.Join(path, boltFileName)
	s.mapSize = mapSize

	opts := &bolt.Options{Timeout: 1 * time.Second}
	if mapSize > 0 && mapSize <= int64(^uint(0)>>1) {
		opts.InitialMmapSize = int(mapSize)
	}
	db, err := bolt.Open(s.Path, 0600, opts)
	if err != nil {
		return errors.Wrapf(err, "open bolt store %s", s.Path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketData)
		return err
	}); err != nil {
		db.Close()
		return errors.Wrapf(err, "init bucket in %s", s.Path)
	}
	s.db = db
	return nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BoltStore) WriteBatch(batch map[string][]byte) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if s.mapSize > 0 && tx.Size()+batchBytes(batch) > s.mapSize {
			return ErrStoreFull
		}
		bkt := tx.Bucket(bucketData)
		for k, v := range batch {
			if err := bkt.Put([]byte(k), v); err != nil {
				return errors.Wrapf(err, "put %s", k)
			}
		}
		return nil
	})
}

func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrStoreClosed
	}
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketData).Get([]byte(key)); v != nil {
			// bbolt memory is only valid inside the transaction.
			val = append([]byte{}, v...)
		}
		return nil
	})
	return val, val != nil, err
}

func (s *BoltStore) Scan(fn func(key string, value []byte) error) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketData).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(string(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Count() (int, error) {
	if s.db == nil {
		return 0, ErrStoreClosed
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketData).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Clear() error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketData); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketData)
		return err
	})
}

package main

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStoreFull is returned when a batch would grow the store past its
	// map-size hint. Nothing from the batch is committed.
	ErrStoreFull = errors.New("store capacity exceeded; rerun with a larger --map-size")

	// ErrStoreClosed is returned by operations on a store that is not open.
	ErrStoreClosed = errors.New("store is not open")

	// ErrUnknownBackend is returned by NewDatastore for unrecognised names.
	ErrUnknownBackend = errors.New("unknown store backend")
)

const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Datastore is the interface that any backend must implement. Keys are
// kept in ascending byte order so that fixed-width record keys iterate in
// ordinal order.
type Datastore interface {
	// Initialize opens or creates the store in the directory at path.
	// mapSize is the capacity hint; zero means unbounded.
	Initialize(path string, mapSize int64) error

	// Close releases the store. Closing twice is harmless.
	Close() error

	// WriteBatch commits every entry in a single transaction. Either all
	// entries become visible or none do.
	WriteBatch(batch map[string][]byte) error

	// Get returns the value stored under key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Scan calls fn for every entry in ascending key order. value is only
	// valid until fn returns. Returning an error from fn stops the scan and
	// is returned.
	Scan(fn func(key string, value []byte) error) error

	// Count returns the number of entries.
	Count() (int, error)

	// Clear removes all entries.
	Clear() error
}

// NewDatastore returns an unopened backend by name.
func NewDatastore(backend string) (Datastore, error) {
	switch backend {
	case BackendBolt, "":
		return &BoltStore{}, nil
	case BackendSQLite:
		return &SQLiteStore{}, nil
	}
	return nil, errors.Wrap(ErrUnknownBackend, fmt.Sprintf("%q", backend))
}

// batchBytes is the payload size of a batch, used for capacity checks.
func batchBytes(batch map[string][]byte) int64 {
	var n int64
	for k, v := range batch {
		n += int64(len(k) + len(v))
	}
	return n
}

package storage

import (
	"time"

	"github.com/digitaljerry/mbus/model"
)

// Backing store for cached schedule resolutions.
//
// Writes replace the full entry. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Retrieves the entry with the given key. Returns nil (and no
	// error) if there is no such entry.
	GetEntry(key string) (*CacheEntry, error)

	// Writes an entry. Any existing entry with the same key is
	// overwritten.
	WriteEntry(entry *CacheEntry) error

	// Deletes the entry with the given key. Deleting a missing
	// entry is not an error.
	DeleteEntry(key string) error

	// Retrieves all entries, ordered by key.
	ListEntries() ([]*CacheEntry, error)

	// Deletes all entries.
	Clear() error
}

// The last successful resolution of a stop/route pair.
type CacheEntry struct {
	Key       string
	Timestamp time.Time
	Payload   model.ScheduleResolution
}

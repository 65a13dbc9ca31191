package storage

import (
	"sort"
	"sync"

	"github.com/digitaljerry/mbus/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	mutex   sync.RWMutex
	entries map[string]CacheEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: map[string]CacheEntry{},
	}
}

func (s *MemoryStorage) GetEntry(key string) (*CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, found := s.entries[key]
	if !found {
		return nil, nil
	}
	entry.Payload = clonePayload(entry.Payload)
	return &entry, nil
}

func (s *MemoryStorage) WriteEntry(entry *CacheEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := *entry
	stored.Payload = clonePayload(entry.Payload)
	s.entries[entry.Key] = stored
	return nil
}

func (s *MemoryStorage) DeleteEntry(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStorage) ListEntries() ([]*CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := []*CacheEntry{}
	for _, entry := range s.entries {
		entry := entry
		entry.Payload = clonePayload(entry.Payload)
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

func (s *MemoryStorage) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = map[string]CacheEntry{}
	return nil
}

// Callers may mutate the slice they get back. Don't let that leak
// into stored entries.
func clonePayload(p model.ScheduleResolution) model.ScheduleResolution {
	if p.Schedules != nil {
		p.Schedules = append([]model.Schedule{}, p.Schedules...)
	}
	return p
}

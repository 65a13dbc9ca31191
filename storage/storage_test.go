package storage_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/storage"
)

// Tests of the storage implementations. All implementations are run
// through the same set of tests.

type StorageBuilder func(t *testing.T) storage.Storage

func builders() map[string]StorageBuilder {
	return map[string]StorageBuilder{
		"memory": func(t *testing.T) storage.Storage {
			return storage.NewMemoryStorage()
		},
		"sqlite": func(t *testing.T) storage.Storage {
			s, err := storage.NewSQLiteStorage()
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite_on_disk": func(t *testing.T) storage.Storage {
			s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: t.TempDir()})
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func entry(key string, ts time.Time, times ...string) *storage.CacheEntry {
	schedules := []model.Schedule{}
	for _, tm := range times {
		schedules = append(schedules, model.Schedule{Time: tm, Destination: "Center", Realtime: true, Delay: 60})
	}
	return &storage.CacheEntry{
		Key:       key,
		Timestamp: ts,
		Payload: model.ScheduleResolution{
			StopID:    "123",
			Route:     "G6",
			Date:      "2024-03-01",
			Schedules: schedules,
			SourceURL: "https://bus.example.com/stops/123?route=G6",
			Note:      model.NoteNextAvailable,
		},
	}
}

func testStorageRoundTrip(t *testing.T, sb StorageBuilder) {
	s := sb(t)
	ts := time.Date(2024, 3, 1, 7, 59, 30, 123456789, time.UTC)

	e, err := s.GetEntry("123-G6")
	require.NoError(t, err)
	assert.Nil(t, e)

	require.NoError(t, s.WriteEntry(entry("123-G6", ts, "08:00", "08:10")))

	e, err = s.GetEntry("123-G6")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "123-G6", e.Key)
	assert.True(t, ts.Equal(e.Timestamp))
	assert.Equal(t, entry("123-G6", ts, "08:00", "08:10").Payload, e.Payload)

	// Overwrite replaces the entire entry
	later := ts.Add(time.Minute)
	require.NoError(t, s.WriteEntry(entry("123-G6", later, "08:20")))
	e, err = s.GetEntry("123-G6")
	require.NoError(t, err)
	assert.True(t, later.Equal(e.Timestamp))
	assert.Equal(t, []model.Schedule{{Time: "08:20", Destination: "Center", Realtime: true, Delay: 60}}, e.Payload.Schedules)

	// Delete, twice
	require.NoError(t, s.DeleteEntry("123-G6"))
	require.NoError(t, s.DeleteEntry("123-G6"))
	e, err = s.GetEntry("123-G6")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func testStorageListAndClear(t *testing.T, sb StorageBuilder) {
	s := sb(t)
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteEntry(entry("b-G1", ts, "09:00")))
	require.NoError(t, s.WriteEntry(entry("a-G6", ts)))
	require.NoError(t, s.WriteEntry(entry("c-G6", ts, "10:00")))

	entries, err := s.ListEntries()
	require.NoError(t, err)
	keys := []string{}
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"a-G6", "b-G1", "c-G6"}, keys)
	assert.Equal(t, []model.Schedule{}, entries[0].Payload.Schedules)

	require.NoError(t, s.Clear())
	entries, err = s.ListEntries()
	require.NoError(t, err)
	assert.Equal(t, 0, len(entries))
}

func testStorageIsolation(t *testing.T, sb StorageBuilder) {
	s := sb(t)
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	written := entry("123-G6", ts, "08:00")
	require.NoError(t, s.WriteEntry(written))
	written.Payload.Schedules[0].Time = "23:59"

	e, err := s.GetEntry("123-G6")
	require.NoError(t, err)
	e.Payload.Schedules[0].Time = "00:01"

	e, err = s.GetEntry("123-G6")
	require.NoError(t, err)
	assert.Equal(t, "08:00", e.Payload.Schedules[0].Time)
}

func testStorageConcurrentWrites(t *testing.T, sb StorageBuilder) {
	s := sb(t)
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tm := fmt.Sprintf("08:%02d", i)
			assert.NoError(t, s.WriteEntry(entry("123-G6", ts.Add(time.Duration(i)*time.Second), tm, tm)))
			_, err := s.GetEntry("123-G6")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whichever write won, the entry is never torn
	e, err := s.GetEntry("123-G6")
	require.NoError(t, err)
	require.Len(t, e.Payload.Schedules, 2)
	assert.Equal(t, e.Payload.Schedules[0], e.Payload.Schedules[1])
}

func TestStorage(t *testing.T) {
	for name, sb := range builders() {
		t.Run(name, func(t *testing.T) {
			t.Run("RoundTrip", func(t *testing.T) { testStorageRoundTrip(t, sb) })
			t.Run("ListAndClear", func(t *testing.T) { testStorageListAndClear(t, sb) })
			t.Run("Isolation", func(t *testing.T) { testStorageIsolation(t, sb) })
			t.Run("ConcurrentWrites", func(t *testing.T) { testStorageConcurrentWrites(t, sb) })
		})
	}
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dir})
	require.NoError(t, err)
	require.NoError(t, s.WriteEntry(entry("123-G6", ts, "08:00")))
	require.NoError(t, s.Close())

	s, err = storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dir})
	require.NoError(t, err)
	defer s.Close()

	e, err := s.GetEntry("123-G6")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "08:00", e.Payload.Schedules[0].Time)
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// SQLite backed Storage. With OnDisk set, cached resolutions survive
// restarts of the process.
type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "mbus.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database, and
	// concurrent writers on disk would hit SQLITE_BUSY. One
	// connection serializes all access.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entry (
    key TEXT NOT NULL,
    stored_at INTEGER NOT NULL,
    payload TEXT NOT NULL,
PRIMARY KEY (key)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache_entry table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) GetEntry(key string) (*CacheEntry, error) {
	row := s.db.QueryRow(`SELECT key, stored_at, payload FROM cache_entry WHERE key = ?`, key)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry %s: %w", key, err)
	}

	return entry, nil
}

func (s *SQLiteStorage) WriteEntry(entry *CacheEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO cache_entry (key, stored_at, payload)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    stored_at = excluded.stored_at,
    payload = excluded.payload`,
		entry.Key,
		entry.Timestamp.UnixNano(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("writing entry %s: %w", entry.Key, err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteEntry(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entry WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) ListEntries() ([]*CacheEntry, error) {
	rows, err := s.db.Query(`SELECT key, stored_at, payload FROM cache_entry ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	entries := []*CacheEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *SQLiteStorage) Clear() error {
	_, err := s.db.Exec(`DELETE FROM cache_entry`)
	if err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*CacheEntry, error) {
	var entry CacheEntry
	var storedAt int64
	var payload string

	err := row.Scan(&entry.Key, &storedAt, &payload)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal([]byte(payload), &entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	entry.Timestamp = time.Unix(0, storedAt).UTC()

	return &entry, nil
}

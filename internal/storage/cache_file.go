package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"stakeScope/internal/cache"
)

var errCorruptCacheFile = errors.New("parse cache file")

type cacheFileEntry struct {
	Mirror    cache.Mirror `json:"mirror"`
	UpdatedAt string       `json:"updated_at"`
}

// FileCacheStore keeps cache mirrors for any number of keys in one JSON file.
// Writes go to a temporary file that is renamed into place.
type FileCacheStore struct {
	path string
	mu   sync.Mutex
}

func NewFileCacheStore(path string) *FileCacheStore {
	return &FileCacheStore{path: path}
}

// Load returns the mirror stored under key.
func (s *FileCacheStore) Load(_ context.Context, key string) (cache.Mirror, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return cache.Mirror{}, false, err
	}
	entry, ok := entries[key]
	if !ok {
		return cache.Mirror{}, false, nil
	}
	return entry.Mirror, true, nil
}

// Save replaces the mirror stored under key.
func (s *FileCacheStore) Save(_ context.Context, key string, mirror cache.Mirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if errors.Is(err, errCorruptCacheFile) {
		// A file that does not parse only held warm-start data.
		entries = make(map[string]cacheFileEntry)
	} else if err != nil {
		return err
	}
	entries[key] = cacheFileEntry{
		Mirror:    mirror,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := ensureDir(s.path); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cache file tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (s *FileCacheStore) read() (map[string]cacheFileEntry, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]cacheFileEntry), nil
		}
		return nil, fmt.Errorf("stat cache file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("cache file path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	entries := make(map[string]cacheFileEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptCacheFile, err)
	}
	return entries, nil
}

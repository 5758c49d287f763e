package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stakeScope/internal/model"
)

// SnapshotJournal appends snapshots to a JSONL file.
type SnapshotJournal struct {
	path string
	mu   sync.Mutex
}

func NewSnapshotJournal(path string) *SnapshotJournal {
	return &SnapshotJournal{path: path}
}

// PutSnapshots appends one JSON line per snapshot.
func (j *SnapshotJournal) PutSnapshots(_ context.Context, snapshots []model.SyncSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if err := ensureDir(j.path); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, snapshot := range snapshots {
		if err := encoder.Encode(snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadSnapshotJournal decodes every line of a journal file.
func ReadSnapshotJournal(path string) ([]model.SyncSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	out := make([]model.SyncSnapshot, 0)
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var snapshot model.SyncSnapshot
		if err := decoder.Decode(&snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", len(out)+1, err)
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

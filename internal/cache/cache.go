// Package cache holds the per-kind record windows the sync engine merges
// ledger logs into.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"stakeScope/internal/model"
)

// DefaultMaxRecordsPerKind bounds each kind when the caller passes zero.
const DefaultMaxRecordsPerKind = 500

// ErrWatermarkRegression is returned by Append when throughBlock is below the
// stored watermark. It always indicates a caller bug.
var ErrWatermarkRegression = errors.New("watermark regression")

type entry struct {
	records []model.LogRecord
	through uint64
	synced  bool
}

// EventCache keeps the most recent records of every kind together with the
// highest block already incorporated for that kind.
type EventCache struct {
	mu         sync.RWMutex
	entries    map[model.EventKind]*entry
	maxPerKind int
}

// New returns an empty cache bounded to maxPerKind records per kind.
func New(maxPerKind int) *EventCache {
	if maxPerKind <= 0 {
		maxPerKind = DefaultMaxRecordsPerKind
	}
	return &EventCache{
		entries:    make(map[model.EventKind]*entry),
		maxPerKind: maxPerKind,
	}
}

// LastIncorporatedBlock returns the watermark of kind, or 0 if it was never
// populated.
func (c *EventCache) LastIncorporatedBlock(kind model.EventKind) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[kind]; ok {
		return e.through
	}
	return 0
}

// Synced reports whether kind has been populated by Replace or Append.
func (c *EventCache) Synced(kind model.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	return ok && e.synced
}

// Replace discards any prior entry for kind and stores records.
func (c *EventCache) Replace(kind model.EventKind, records []model.LogRecord, throughBlock uint64) []model.LogRecord {
	stored := c.trim(sortedCopy(records))

	c.mu.Lock()
	c.entries[kind] = &entry{records: stored, through: throughBlock, synced: true}
	c.mu.Unlock()

	return cloneRecords(stored)
}

// Append adds newRecords after the stored ones and advances the watermark,
// even when newRecords is empty. The full resulting window is returned.
func (c *EventCache) Append(kind model.EventKind, newRecords []model.LogRecord, throughBlock uint64) ([]model.LogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[kind]
	if !ok {
		e = &entry{}
		c.entries[kind] = e
	}
	if throughBlock < e.through {
		return nil, fmt.Errorf("%w: %s through %d below %d", ErrWatermarkRegression, kind, throughBlock, e.through)
	}

	merged := make([]model.LogRecord, 0, len(e.records)+len(newRecords))
	merged = append(merged, e.records...)
	merged = append(merged, sortedCopy(newRecords)...)
	e.records = c.trim(merged)
	e.through = throughBlock
	e.synced = true

	return cloneRecords(e.records), nil
}

// Records returns a copy of the cached window for kind.
func (c *EventCache) Records(kind model.EventKind) []model.LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	if !ok {
		return nil
	}
	return cloneRecords(e.records)
}

// Clear drops kind so the next sync backfills it.
func (c *EventCache) Clear(kind model.EventKind) {
	c.mu.Lock()
	delete(c.entries, kind)
	c.mu.Unlock()
}

// ClearAll drops every kind.
func (c *EventCache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[model.EventKind]*entry)
	c.mu.Unlock()
}

// Size returns the number of cached records of kind.
func (c *EventCache) Size(kind model.EventKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[kind]; ok {
		return len(e.records)
	}
	return 0
}

// KindStats describes one cached kind.
type KindStats struct {
	Records               int    `json:"records"`
	LastIncorporatedBlock uint64 `json:"last_incorporated_block"`
}

// Stats summarizes the cache for diagnostics.
type Stats struct {
	TotalRecords int                             `json:"total_records"`
	MaxPerKind   int                             `json:"max_per_kind"`
	Kinds        map[model.EventKind]KindStats `json:"kinds"`
}

// Stats returns per-kind counts and watermarks.
func (c *EventCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Stats{
		MaxPerKind: c.maxPerKind,
		Kinds:      make(map[model.EventKind]KindStats, len(c.entries)),
	}
	for kind, e := range c.entries {
		out.Kinds[kind] = KindStats{Records: len(e.records), LastIncorporatedBlock: e.through}
		out.TotalRecords += len(e.records)
	}
	return out
}

// trim keeps the most recently appended maxPerKind records.
func (c *EventCache) trim(records []model.LogRecord) []model.LogRecord {
	if len(records) <= c.maxPerKind {
		return records
	}
	out := make([]model.LogRecord, c.maxPerKind)
	copy(out, records[len(records)-c.maxPerKind:])
	return out
}

func sortedCopy(records []model.LogRecord) []model.LogRecord {
	out := cloneRecords(records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func cloneRecords(records []model.LogRecord) []model.LogRecord {
	if records == nil {
		return nil
	}
	out := make([]model.LogRecord, len(records))
	copy(out, records)
	return out
}

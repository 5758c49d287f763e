package cache

import (
	"context"
	"sort"
	"strings"

	"stakeScope/internal/model"
)

// Mirror is the serializable form of an EventCache used for warm starts.
// It is never authoritative: a missing or unreadable mirror only costs a
// backfill.
type Mirror struct {
	Entries []MirrorEntry `json:"entries"`
}

// MirrorEntry is one cached kind.
type MirrorEntry struct {
	Kind                  model.EventKind   `json:"kind"`
	LastIncorporatedBlock uint64            `json:"last_incorporated_block"`
	Records               []model.LogRecord `json:"records"`
}

// Store persists mirrors by key.
type Store interface {
	Load(ctx context.Context, key string) (Mirror, bool, error)
	Save(ctx context.Context, key string, mirror Mirror) error
}

// MirrorKey identifies the mirror of one endpoint and contract.
func MirrorKey(endpointID, contract string) string {
	return endpointID + "|" + strings.ToLower(contract)
}

// Export snapshots the synced kinds in a stable order.
func (c *EventCache) Export() Mirror {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Mirror{Entries: make([]MirrorEntry, 0, len(c.entries))}
	for kind, e := range c.entries {
		if !e.synced {
			continue
		}
		out.Entries = append(out.Entries, MirrorEntry{
			Kind:                  kind,
			LastIncorporatedBlock: e.through,
			Records:               cloneRecords(e.records),
		})
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		return out.Entries[i].Kind < out.Entries[j].Kind
	})
	return out
}

// Import replaces the cache contents with mirror. Entries of unknown kinds
// are ignored and records are re-trimmed to the current bound. It returns the
// number of kinds restored.
func (c *EventCache) Import(mirror Mirror) int {
	entries := make(map[model.EventKind]*entry, len(mirror.Entries))
	for _, me := range mirror.Entries {
		if _, err := model.ParseEventKind(string(me.Kind)); err != nil {
			continue
		}
		records := make([]model.LogRecord, 0, len(me.Records))
		for _, record := range me.Records {
			if record.Kind == me.Kind && record.BlockNumber <= me.LastIncorporatedBlock {
				records = append(records, record)
			}
		}
		entries[me.Kind] = &entry{
			records: c.trim(sortedCopy(records)),
			through: me.LastIncorporatedBlock,
			synced:  true,
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return len(entries)
}

package syncer

import (
	"sort"
	"strings"

	"stakeScope/internal/model"
)

// recentActivity merges every kind newest first and keeps the first limit.
func recentActivity(byKind map[model.EventKind][]model.LogRecord, limit int) []model.ActivityItem {
	total := 0
	for _, records := range byKind {
		total += len(records)
	}
	merged := make([]model.LogRecord, 0, total)
	for _, records := range byKind {
		merged = append(merged, records...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].BlockNumber != merged[j].BlockNumber {
			return merged[i].BlockNumber > merged[j].BlockNumber
		}
		if merged[i].LogIndex != merged[j].LogIndex {
			return merged[i].LogIndex > merged[j].LogIndex
		}
		return merged[i].Kind < merged[j].Kind
	})
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]model.ActivityItem, 0, len(merged))
	for _, record := range merged {
		out = append(out, model.NewActivityItem(record))
	}
	return out
}

// roster returns the distinct actors of kinds, sorted. Addresses compare
// case-insensitively; the first spelling seen is kept.
func roster(byKind map[model.EventKind][]model.LogRecord, kinds []model.EventKind) []string {
	seen := make(map[string]string)
	for _, kind := range kinds {
		for _, record := range byKind[kind] {
			actor := record.Actor()
			if actor == "" {
				continue
			}
			key := strings.ToLower(actor)
			if _, ok := seen[key]; !ok {
				seen[key] = actor
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, seen[key])
	}
	return out
}

package model

// MaxRecentActivity bounds SyncSnapshot.RecentActivity.
const MaxRecentActivity = 20

// SyncSnapshot is one consolidated, point-in-time view of the contract.
// A snapshot is never mutated after it is delivered; subscribers must treat
// its maps and slices as read-only.
type SyncSnapshot struct {
	Connected            bool                      `json:"connected"`
	Endpoint             string                    `json:"endpoint,omitempty"`
	Contract             string                    `json:"contract,omitempty"`
	Height               uint64                    `json:"height"`
	Scalars              map[string]string         `json:"scalars,omitempty"`
	RecordsByKind        map[EventKind][]LogRecord `json:"records_by_kind,omitempty"`
	Roster               []string                  `json:"roster,omitempty"`
	RecentActivity       []ActivityItem            `json:"recent_activity,omitempty"`
	CapturedAtUnixMillis int64                     `json:"captured_at_unix_millis"`
}

// ActivityItem is one entry of the merged, newest-first activity feed.
type ActivityItem struct {
	Kind        EventKind `json:"kind"`
	Actor       string    `json:"actor"`
	Summary     string    `json:"summary"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint64    `json:"log_index"`
	TxHash      string    `json:"tx_hash"`
	OccurredAt  uint64    `json:"occurred_at"`
}

// NewActivityItem flattens a record into an activity entry.
func NewActivityItem(record LogRecord) ActivityItem {
	item := ActivityItem{
		Kind:        record.Kind,
		Actor:       record.Actor(),
		BlockNumber: record.BlockNumber,
		LogIndex:    record.LogIndex,
		TxHash:      record.TxHash,
		OccurredAt:  record.OccurredAt,
	}
	if record.Data != nil {
		item.Summary = record.Data.Summary()
	}
	return item
}

package model

import (
	"encoding/json"
	"fmt"
)

// LogRecord is an immutable contract event extracted from a ledger log.
type LogRecord struct {
	Kind        EventKind `json:"kind"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint64    `json:"log_index"`
	TxHash      string    `json:"tx_hash"`
	OccurredAt  uint64    `json:"occurred_at"`
	Data        EventData `json:"data"`
}

// Actor returns the address attributed to the record, or "" without data.
func (lr LogRecord) Actor() string {
	if lr.Data == nil {
		return ""
	}
	return lr.Data.Actor()
}

// Before reports whether lr sorts before other in ledger order.
func (lr LogRecord) Before(other LogRecord) bool {
	if lr.BlockNumber != other.BlockNumber {
		return lr.BlockNumber < other.BlockNumber
	}
	return lr.LogIndex < other.LogIndex
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord, selecting the payload type from Kind.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a struct {
		Alias
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	decoded, err := decodeEventData(a.Kind, a.Data)
	if err != nil {
		return err
	}

	*lr = LogRecord(a.Alias)
	lr.Data = decoded
	return nil
}

func decodeEventData(kind EventKind, raw json.RawMessage) (EventData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch kind {
	case StakeDeposited:
		var d StakeDepositedData
		err := json.Unmarshal(raw, &d)
		return d, err
	case StakeWithdrawn:
		var d StakeWithdrawnData
		err := json.Unmarshal(raw, &d)
		return d, err
	case MessagePosted:
		var d MessagePostedData
		err := json.Unmarshal(raw, &d)
		return d, err
	case ValidatorPenalized:
		var d ValidatorPenalizedData
		err := json.Unmarshal(raw, &d)
		return d, err
	case BlockProposed:
		var d BlockProposedData
		err := json.Unmarshal(raw, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
}

package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		Kind:        StakeDeposited,
		BlockNumber: 36000000,
		LogIndex:    12,
		TxHash:      "0xdef456",
		OccurredAt:  1700000000,
		Data: StakeDepositedData{
			Staker:     "0x1111111111111111111111111111111111111111",
			Amount:     "1000000000000000000",
			TotalStake: "3000000000000000000",
		},
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestLogRecordUnmarshalSelectsVariant(t *testing.T) {
	input := `{"kind":"MessagePosted","block_number":7,"log_index":0,"tx_hash":"0xabc","occurred_at":1,
		"data":{"sender":"0x2222222222222222222222222222222222222222","message_id":"4","text":"gm"}}`

	var record LogRecord
	if err := json.Unmarshal([]byte(input), &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	msg, ok := record.Data.(MessagePostedData)
	if !ok {
		t.Fatalf("data type mismatch: %T", record.Data)
	}
	if msg.Text != "gm" || msg.MessageID != "4" {
		t.Fatalf("message mismatch: %+v", msg)
	}
	if record.Actor() != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("actor mismatch: %s", record.Actor())
	}
}

func TestLogRecordUnmarshalUnknownKind(t *testing.T) {
	input := `{"kind":"Swap","block_number":1,"data":{"sender":"0x1"}}`

	var record LogRecord
	if err := json.Unmarshal([]byte(input), &record); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestLogRecordBefore(t *testing.T) {
	a := LogRecord{BlockNumber: 5, LogIndex: 3}
	b := LogRecord{BlockNumber: 5, LogIndex: 4}
	c := LogRecord{BlockNumber: 6, LogIndex: 0}

	if !a.Before(b) || !b.Before(c) || c.Before(a) {
		t.Fatalf("ordering mismatch")
	}
}

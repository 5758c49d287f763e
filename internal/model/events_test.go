package model

import (
	"encoding/json"
	"testing"
)

func TestStakeEventDataJSONStringFields(t *testing.T) {
	payload := StakeWithdrawnData{
		Staker:    "0x1111111111111111111111111111111111111111",
		Amount:    "12345678901234567890",
		Remaining: "0",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := decoded["amount"].(string); !ok {
		t.Fatalf("amount should be string")
	}
	if _, ok := decoded["remaining"].(string); !ok {
		t.Fatalf("remaining should be string")
	}
}

func TestEventDataKinds(t *testing.T) {
	cases := []struct {
		data EventData
		kind EventKind
	}{
		{StakeDepositedData{}, StakeDeposited},
		{StakeWithdrawnData{}, StakeWithdrawn},
		{MessagePostedData{}, MessagePosted},
		{ValidatorPenalizedData{}, ValidatorPenalized},
		{BlockProposedData{}, BlockProposed},
	}
	for _, tc := range cases {
		if tc.data.Kind() != tc.kind {
			t.Fatalf("kind mismatch: %s != %s", tc.data.Kind(), tc.kind)
		}
	}
	if len(AllKinds()) != len(cases) {
		t.Fatalf("AllKinds length %d", len(AllKinds()))
	}
}

func TestParseEventKind(t *testing.T) {
	kind, err := ParseEventKind(" messageposted ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != MessagePosted {
		t.Fatalf("kind mismatch: %s", kind)
	}
	if _, err := ParseEventKind("swap"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

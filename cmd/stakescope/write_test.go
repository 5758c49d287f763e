package main

import "testing"

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("1000000000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount.String() != "1000000000000000000" {
		t.Fatalf("unexpected amount: %s", amount)
	}

	amount, err = parseAmount("0x10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount.Int64() != 16 {
		t.Fatalf("unexpected hex amount: %s", amount)
	}

	for _, input := range []string{"", "0", "-5", "ten", "0x"} {
		if _, err := parseAmount(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

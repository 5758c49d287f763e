package model

import (
	"fmt"
	"strings"
)

// EventKind names a contract event type.
type EventKind string

const (
	StakeDeposited     EventKind = "StakeDeposited"
	StakeWithdrawn     EventKind = "StakeWithdrawn"
	MessagePosted      EventKind = "MessagePosted"
	ValidatorPenalized EventKind = "ValidatorPenalized"
	BlockProposed      EventKind = "BlockProposed"
)

// AllKinds returns every supported kind in a fixed order.
func AllKinds() []EventKind {
	return []EventKind{
		StakeDeposited,
		StakeWithdrawn,
		MessagePosted,
		ValidatorPenalized,
		BlockProposed,
	}
}

// RosterKinds are the kinds whose actors make up the participant roster.
func RosterKinds() []EventKind {
	return []EventKind{StakeDeposited, StakeWithdrawn, MessagePosted}
}

// ParseEventKind accepts a kind name case-insensitively.
func ParseEventKind(name string) (EventKind, error) {
	name = strings.TrimSpace(name)
	for _, kind := range AllKinds() {
		if strings.EqualFold(string(kind), name) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %s", name)
}

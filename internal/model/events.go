package model

import "fmt"

// EventData is the decoded payload of a contract event. Each EventKind has
// exactly one concrete implementation.
type EventData interface {
	Kind() EventKind
	// Actor returns the address the event is attributed to.
	Actor() string
	// Summary returns a short human readable description.
	Summary() string
}

// StakeDepositedData is the decoded StakeDeposited event payload.
type StakeDepositedData struct {
	Staker     string `json:"staker"`
	Amount     string `json:"amount"`
	TotalStake string `json:"total_stake"`
}

func (StakeDepositedData) Kind() EventKind { return StakeDeposited }
func (d StakeDepositedData) Actor() string { return d.Staker }
func (d StakeDepositedData) Summary() string {
	return fmt.Sprintf("%s staked %s", d.Staker, d.Amount)
}

// StakeWithdrawnData is the decoded StakeWithdrawn event payload.
type StakeWithdrawnData struct {
	Staker    string `json:"staker"`
	Amount    string `json:"amount"`
	Remaining string `json:"remaining"`
}

func (StakeWithdrawnData) Kind() EventKind { return StakeWithdrawn }
func (d StakeWithdrawnData) Actor() string { return d.Staker }
func (d StakeWithdrawnData) Summary() string {
	return fmt.Sprintf("%s withdrew %s", d.Staker, d.Amount)
}

// MessagePostedData is the decoded MessagePosted event payload.
type MessagePostedData struct {
	Sender    string `json:"sender"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

func (MessagePostedData) Kind() EventKind { return MessagePosted }
func (d MessagePostedData) Actor() string { return d.Sender }
func (d MessagePostedData) Summary() string {
	return fmt.Sprintf("%s posted #%s", d.Sender, d.MessageID)
}

// ValidatorPenalizedData is the decoded ValidatorPenalized event payload.
type ValidatorPenalizedData struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

func (ValidatorPenalizedData) Kind() EventKind { return ValidatorPenalized }
func (d ValidatorPenalizedData) Actor() string { return d.Validator }
func (d ValidatorPenalizedData) Summary() string {
	return fmt.Sprintf("%s penalized %s (%s)", d.Validator, d.Amount, d.Reason)
}

// BlockProposedData is the decoded BlockProposed event payload.
type BlockProposedData struct {
	Proposer string `json:"proposer"`
	Slot     uint64 `json:"slot"`
	Reward   string `json:"reward"`
}

func (BlockProposedData) Kind() EventKind { return BlockProposed }
func (d BlockProposedData) Actor() string { return d.Proposer }
func (d BlockProposedData) Summary() string {
	return fmt.Sprintf("%s proposed slot %d", d.Proposer, d.Slot)
}

package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"stakeScope/internal/model"
)

var testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestDecoderStakeDeposited(t *testing.T) {
	parsed, err := StakeBoardABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	staker := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := parsed.Events["StakeDeposited"].Inputs.NonIndexed().Pack(
		big.NewInt(1000),
		big.NewInt(5000),
	)
	if err != nil {
		t.Fatalf("pack deposit: %v", err)
	}

	log := buildLog(parsed.Events["StakeDeposited"].ID, data, []common.Hash{topicFromAddress(staker)})

	record, err := decoder.Decode(log, 1700000000)
	if err != nil {
		t.Fatalf("decode deposit: %v", err)
	}

	if record.Kind != model.StakeDeposited {
		t.Fatalf("kind mismatch: %s", record.Kind)
	}
	deposit, ok := record.Data.(model.StakeDepositedData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", record.Data)
	}
	if deposit.Amount != "1000" || deposit.TotalStake != "5000" {
		t.Fatalf("amounts mismatch: %+v", deposit)
	}
	if deposit.Staker != staker.Hex() {
		t.Fatalf("staker mismatch: %s", deposit.Staker)
	}
	if record.BlockNumber != 12345 || record.LogIndex != 1 || record.OccurredAt != 1700000000 {
		t.Fatalf("position mismatch: %+v", record)
	}
}

func TestDecoderMessagePenaltyProposal(t *testing.T) {
	parsed, err := StakeBoardABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	validator := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	msgData, err := parsed.Events["MessagePosted"].Inputs.NonIndexed().Pack("hello validators")
	if err != nil {
		t.Fatalf("pack message: %v", err)
	}
	msgLog := buildLog(parsed.Events["MessagePosted"].ID, msgData, []common.Hash{
		topicFromAddress(sender),
		common.BigToHash(big.NewInt(42)),
	})
	msgRecord, err := decoder.Decode(msgLog, 1)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	msg, ok := msgRecord.Data.(model.MessagePostedData)
	if !ok {
		t.Fatalf("message type mismatch")
	}
	if msg.Text != "hello validators" || msg.MessageID != "42" || msg.Sender != sender.Hex() {
		t.Fatalf("message mismatch: %+v", msg)
	}

	penaltyData, err := parsed.Events["ValidatorPenalized"].Inputs.NonIndexed().Pack(big.NewInt(700), "double sign")
	if err != nil {
		t.Fatalf("pack penalty: %v", err)
	}
	penaltyLog := buildLog(parsed.Events["ValidatorPenalized"].ID, penaltyData, []common.Hash{topicFromAddress(validator)})
	penaltyRecord, err := decoder.Decode(penaltyLog, 1)
	if err != nil {
		t.Fatalf("decode penalty: %v", err)
	}
	penalty, ok := penaltyRecord.Data.(model.ValidatorPenalizedData)
	if !ok {
		t.Fatalf("penalty type mismatch")
	}
	if penalty.Amount != "700" || penalty.Reason != "double sign" {
		t.Fatalf("penalty mismatch: %+v", penalty)
	}

	proposalData, err := parsed.Events["BlockProposed"].Inputs.NonIndexed().Pack(big.NewInt(9))
	if err != nil {
		t.Fatalf("pack proposal: %v", err)
	}
	proposalLog := buildLog(parsed.Events["BlockProposed"].ID, proposalData, []common.Hash{
		topicFromAddress(validator),
		common.BigToHash(big.NewInt(88)),
	})
	proposalRecord, err := decoder.Decode(proposalLog, 1)
	if err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	proposal, ok := proposalRecord.Data.(model.BlockProposedData)
	if !ok {
		t.Fatalf("proposal type mismatch")
	}
	if proposal.Slot != 88 || proposal.Reward != "9" || proposal.Proposer != validator.Hex() {
		t.Fatalf("proposal mismatch: %+v", proposal)
	}
}

func TestDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	log := buildLog(common.HexToHash("0xdeadbeef"), nil, nil)
	_, err = decoder.Decode(log, 0)
	if err == nil {
		t.Fatalf("expected error for unknown topic0")
	}
	var decodeErr *model.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if decodeErr.BlockNumber != 12345 {
		t.Fatalf("decode error block mismatch: %d", decodeErr.BlockNumber)
	}
}

func TestDecoderTopicCount(t *testing.T) {
	parsed, err := StakeBoardABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	data, err := parsed.Events["StakeWithdrawn"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(0))
	if err != nil {
		t.Fatalf("pack withdraw: %v", err)
	}
	log := buildLog(parsed.Events["StakeWithdrawn"].ID, data, nil)
	if _, err := decoder.Decode(log, 0); err == nil {
		t.Fatalf("expected error for missing indexed topic")
	}
}

func TestUnpackScalar(t *testing.T) {
	parsed, err := StakeBoardABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	resp, err := parsed.Methods[ScalarTotalStaked].Outputs.Pack(big.NewInt(123456))
	if err != nil {
		t.Fatalf("pack output: %v", err)
	}
	got, err := UnpackScalar(ScalarTotalStaked, resp)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got != "123456" {
		t.Fatalf("scalar mismatch: %s", got)
	}
	if !IsScalar(ScalarStakeOf) || IsScalar(MethodStake) {
		t.Fatalf("scalar classification mismatch")
	}
}

func buildLog(topic0 common.Hash, data []byte, indexed []common.Hash) types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)

	return types.Log{
		Address:     testContract,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"stakeScope/internal/model"
)

// Decoder decodes staking contract logs into typed records.
type Decoder struct {
	contractABI abi.ABI
	topicToKind map[common.Hash]model.EventKind
	kindToTopic map[model.EventKind]common.Hash
}

// NewDecoder builds a Decoder for every supported event kind.
func NewDecoder() (*Decoder, error) {
	parsed, err := StakeBoardABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	d := &Decoder{
		contractABI: parsed,
		topicToKind: make(map[common.Hash]model.EventKind),
		kindToTopic: make(map[model.EventKind]common.Hash),
	}
	for _, kind := range model.AllKinds() {
		event, ok := parsed.Events[string(kind)]
		if !ok {
			return nil, fmt.Errorf("abi missing event %s", kind)
		}
		d.topicToKind[event.ID] = kind
		d.kindToTopic[kind] = event.ID
	}
	return d, nil
}

// Topic0 returns the event signature hash for kind.
func (d *Decoder) Topic0(kind model.EventKind) (common.Hash, bool) {
	topic, ok := d.kindToTopic[kind]
	return topic, ok
}

// Decode converts a raw log into a LogRecord stamped with the block timestamp.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (model.LogRecord, error) {
	if len(log.Topics) == 0 {
		return model.LogRecord{}, decodeError(log, fmt.Errorf("missing topics"))
	}
	kind, ok := d.topicToKind[log.Topics[0]]
	if !ok {
		return model.LogRecord{}, decodeError(log, fmt.Errorf("unsupported topic0"))
	}

	data, err := d.decodeData(kind, log)
	if err != nil {
		return model.LogRecord{}, decodeError(log, err)
	}

	return model.LogRecord{
		Kind:        kind,
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		TxHash:      log.TxHash.Hex(),
		OccurredAt:  timestamp,
		Data:        data,
	}, nil
}

func (d *Decoder) decodeData(kind model.EventKind, log types.Log) (model.EventData, error) {
	event := d.contractABI.Events[string(kind)]
	indexed, err := parseIndexed(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case model.StakeDeposited:
		return decodeStakeDeposited(indexed, values)
	case model.StakeWithdrawn:
		return decodeStakeWithdrawn(indexed, values)
	case model.MessagePosted:
		return decodeMessagePosted(indexed, values)
	case model.ValidatorPenalized:
		return decodeValidatorPenalized(indexed, values)
	case model.BlockProposed:
		return decodeBlockProposed(indexed, values)
	default:
		return nil, fmt.Errorf("unsupported event kind: %s", kind)
	}
}

func decodeStakeDeposited(indexed map[string]interface{}, values []interface{}) (model.EventData, error) {
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected deposit values: %d", len(values))
	}
	staker, err := asAddress(indexed["staker"])
	if err != nil {
		return nil, fmt.Errorf("staker: %w", err)
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	total, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	return model.StakeDepositedData{
		Staker:     staker.Hex(),
		Amount:     amount.String(),
		TotalStake: total.String(),
	}, nil
}

func decodeStakeWithdrawn(indexed map[string]interface{}, values []interface{}) (model.EventData, error) {
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected withdraw values: %d", len(values))
	}
	staker, err := asAddress(indexed["staker"])
	if err != nil {
		return nil, fmt.Errorf("staker: %w", err)
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	remaining, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	return model.StakeWithdrawnData{
		Staker:    staker.Hex(),
		Amount:    amount.String(),
		Remaining: remaining.String(),
	}, nil
}

func decodeMessagePosted(indexed map[string]interface{}, values []interface{}) (model.EventData, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected message values: %d", len(values))
	}
	sender, err := asAddress(indexed["sender"])
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	id, err := asBigInt(indexed["messageId"])
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	text, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("unsupported text type %T", values[0])
	}
	return model.MessagePostedData{
		Sender:    sender.Hex(),
		MessageID: id.String(),
		Text:      text,
	}, nil
}

func decodeValidatorPenalized(indexed map[string]interface{}, values []interface{}) (model.EventData, error) {
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected penalty values: %d", len(values))
	}
	validator, err := asAddress(indexed["validator"])
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	reason, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("unsupported reason type %T", values[1])
	}
	return model.ValidatorPenalizedData{
		Validator: validator.Hex(),
		Amount:    amount.String(),
		Reason:    reason,
	}, nil
}

func decodeBlockProposed(indexed map[string]interface{}, values []interface{}) (model.EventData, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected proposal values: %d", len(values))
	}
	proposer, err := asAddress(indexed["proposer"])
	if err != nil {
		return nil, fmt.Errorf("proposer: %w", err)
	}
	slot, err := asBigInt(indexed["slot"])
	if err != nil {
		return nil, fmt.Errorf("slot: %w", err)
	}
	if !slot.IsUint64() {
		return nil, fmt.Errorf("slot overflow: %s", slot)
	}
	reward, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	return model.BlockProposedData{
		Proposer: proposer.Hex(),
		Slot:     slot.Uint64(),
		Reward:   reward.String(),
	}, nil
}

func parseIndexed(event abi.Event, topics []common.Hash) (map[string]interface{}, error) {
	args := indexedArguments(event.Inputs)
	if len(topics) != len(args)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(args)+1, len(topics))
	}
	out := make(map[string]interface{}, len(args))
	if err := abi.ParseTopicsIntoMap(out, args, topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func decodeError(log types.Log, err error) error {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = strings.ToLower(log.Topics[0].Hex())
	}
	return &model.DecodeError{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Err:         err,
	}
}

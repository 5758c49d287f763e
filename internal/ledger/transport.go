// Package ledger defines the primitive read/write surface of the remote ledger
// and its go-ethereum implementation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"stakeScope/internal/model"
)

var (
	// ErrNoContract is returned when the configured address has no code or
	// answers a view call with empty data.
	ErrNoContract = errors.New("no contract at address")
	// ErrReverted is returned when a write was mined but reverted.
	ErrReverted = errors.New("transaction reverted")
	// ErrUnknownScalar is returned for a scalar name the contract does not expose.
	ErrUnknownScalar = errors.New("unknown scalar")
)

// Transport is the primitive ledger API. Implementations hold no cache of
// contract state and never retry on their own.
type Transport interface {
	// Height returns the current chain height.
	Height(ctx context.Context) (uint64, error)
	// Scalar reads a single contract value by name.
	Scalar(ctx context.Context, name string, args ...interface{}) (string, error)
	// LogRange returns records of kind in the inclusive range, ordered by
	// block number then log index.
	LogRange(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LogRecord, error)
	// SendWrite submits a state-changing call and blocks until it is mined.
	SendWrite(ctx context.Context, req WriteRequest, signer *Signer) (model.Receipt, error)
}

// WriteRequest describes a contract write.
type WriteRequest struct {
	Operation string
	Args      []interface{}
	Value     *big.Int
}

// Signer is an opaque handle able to sign transactions for one account.
type Signer struct {
	opts *bind.TransactOpts
}

// NewSigner loads an ECDSA key file and binds it to chainID.
func NewSigner(keyFile string, chainID *big.Int) (*Signer, error) {
	key, err := crypto.LoadECDSA(keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &Signer{opts: opts}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address {
	if s == nil || s.opts == nil {
		return common.Address{}
	}
	return s.opts.From
}

func (s *Signer) transactOpts(value *big.Int) *bind.TransactOpts {
	opts := *s.opts
	if value != nil {
		opts.Value = new(big.Int).Set(value)
	}
	return &opts
}

// ParseAddress validates and converts a hex address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

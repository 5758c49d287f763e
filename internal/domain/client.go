// Package domain translates staking operations into primitive ledger calls.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakeScope/internal/contract"
	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

// Client is a stateless adapter over a ledger.Transport. Every call goes to
// the transport; nothing is cached or retried here.
type Client struct {
	transport ledger.Transport
	scalars   []string
}

// NewClient wraps transport. scalars overrides the aggregate reads collected
// by Scalars; nil selects the contract defaults.
func NewClient(transport ledger.Transport, scalars []string) *Client {
	if len(scalars) == 0 {
		scalars = contract.AggregateScalars()
	}
	return &Client{transport: transport, scalars: scalars}
}

// Height returns the current chain height.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	return c.transport.Height(ctx)
}

// Scalars reads every aggregate value. Any failed read fails the whole call.
func (c *Client) Scalars(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(c.scalars))
	for _, name := range c.scalars {
		value, err := c.transport.Scalar(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

// Logs returns the records of kind in the inclusive block range.
func (c *Client) Logs(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LogRecord, error) {
	return c.transport.LogRange(ctx, kind, from, to)
}

// StakeOf reads the staked balance of account.
func (c *Client) StakeOf(ctx context.Context, account common.Address) (*big.Int, error) {
	value, err := c.transport.Scalar(ctx, contract.ScalarStakeOf, account)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stake value: %s", value)
	}
	return n, nil
}

// IsValid performs one harmless read and reports whether the configured
// address behaves like the staking contract. A transport failure is returned
// as an error rather than a negative answer.
func (c *Client) IsValid(ctx context.Context) (bool, error) {
	_, err := c.transport.Scalar(ctx, contract.ScalarTotalStaked)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ledger.ErrNoContract) || isUnpackError(err) {
		return false, nil
	}
	return false, err
}

// Stake deposits amount wei and waits for the receipt.
func (c *Client) Stake(ctx context.Context, amount *big.Int, signer *ledger.Signer) (model.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return model.Receipt{}, fmt.Errorf("stake amount must be positive")
	}
	return c.transport.SendWrite(ctx, ledger.WriteRequest{
		Operation: contract.MethodStake,
		Value:     amount,
	}, signer)
}

// Withdraw removes amount wei of stake and waits for the receipt.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int, signer *ledger.Signer) (model.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return model.Receipt{}, fmt.Errorf("withdraw amount must be positive")
	}
	return c.transport.SendWrite(ctx, ledger.WriteRequest{
		Operation: contract.MethodWithdraw,
		Args:      []interface{}{amount},
	}, signer)
}

// PostMessage publishes text on the board and waits for the receipt.
func (c *Client) PostMessage(ctx context.Context, text string, signer *ledger.Signer) (model.Receipt, error) {
	if text == "" {
		return model.Receipt{}, fmt.Errorf("message text is required")
	}
	return c.transport.SendWrite(ctx, ledger.WriteRequest{
		Operation: contract.MethodPostMessage,
		Args:      []interface{}{text},
	}, signer)
}

func isUnpackError(err error) bool {
	var unpackErr *contract.UnpackError
	return errors.As(err, &unpackErr)
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakeScope/internal/contract"
	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

type fakeTransport struct {
	scalars   map[string]string
	scalarErr error
	calls     []string
	writes    []ledger.WriteRequest
	writeErr  error
}

func (f *fakeTransport) Height(context.Context) (uint64, error) {
	f.calls = append(f.calls, "height")
	return 10, nil
}

func (f *fakeTransport) Scalar(_ context.Context, name string, args ...interface{}) (string, error) {
	f.calls = append(f.calls, "scalar:"+name)
	if f.scalarErr != nil {
		return "", f.scalarErr
	}
	value, ok := f.scalars[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ledger.ErrUnknownScalar, name)
	}
	return value, nil
}

func (f *fakeTransport) LogRange(_ context.Context, kind model.EventKind, from, to uint64) ([]model.LogRecord, error) {
	f.calls = append(f.calls, fmt.Sprintf("logs:%s:%d:%d", kind, from, to))
	return nil, nil
}

func (f *fakeTransport) SendWrite(_ context.Context, req ledger.WriteRequest, _ *ledger.Signer) (model.Receipt, error) {
	f.writes = append(f.writes, req)
	if f.writeErr != nil {
		return model.Receipt{}, f.writeErr
	}
	return model.Receipt{TxHash: "0xabc", Status: 1}, nil
}

func TestScalarsReadsEveryAggregate(t *testing.T) {
	transport := &fakeTransport{scalars: map[string]string{
		contract.ScalarTotalStaked:    "100",
		contract.ScalarValidatorCount: "3",
		contract.ScalarMessageCount:   "7",
		contract.ScalarMinimumStake:   "1",
	}}
	client := NewClient(transport, nil)

	got, err := client.Scalars(context.Background())
	require.NoError(t, err)
	require.Equal(t, "100", got[contract.ScalarTotalStaked])
	require.Len(t, got, 4)

	// Stateless: a second call hits the transport again.
	_, err = client.Scalars(context.Background())
	require.NoError(t, err)
	require.Len(t, transport.calls, 8)
}

func TestStakeOf(t *testing.T) {
	transport := &fakeTransport{scalars: map[string]string{contract.ScalarStakeOf: "5000"}}
	client := NewClient(transport, nil)

	stake, err := client.StakeOf(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	require.Equal(t, int64(5000), stake.Int64())
}

func TestIsValid(t *testing.T) {
	transport := &fakeTransport{scalars: map[string]string{contract.ScalarTotalStaked: "0"}}
	client := NewClient(transport, nil)

	ok, err := client.IsValid(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	transport.scalarErr = fmt.Errorf("call: %w", ledger.ErrNoContract)
	ok, err = client.IsValid(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	transport.scalarErr = &contract.UnpackError{Method: contract.ScalarTotalStaked, Err: errors.New("short")}
	ok, err = client.IsValid(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	transport.scalarErr = errors.New("connection refused")
	ok, err = client.IsValid(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}

func TestWritesTranslateToOperations(t *testing.T) {
	transport := &fakeTransport{}
	client := NewClient(transport, nil)
	ctx := context.Background()

	_, err := client.Stake(ctx, big.NewInt(10), nil)
	require.NoError(t, err)
	_, err = client.Withdraw(ctx, big.NewInt(4), nil)
	require.NoError(t, err)
	_, err = client.PostMessage(ctx, "gm", nil)
	require.NoError(t, err)

	require.Len(t, transport.writes, 3)
	require.Equal(t, contract.MethodStake, transport.writes[0].Operation)
	require.Equal(t, int64(10), transport.writes[0].Value.Int64())
	require.Equal(t, contract.MethodWithdraw, transport.writes[1].Operation)
	require.Equal(t, contract.MethodPostMessage, transport.writes[2].Operation)
	require.Equal(t, []interface{}{"gm"}, transport.writes[2].Args)
}

func TestWriteErrorsAreReturnedUntouched(t *testing.T) {
	transport := &fakeTransport{writeErr: fmt.Errorf("stake 0xabc: %w", ledger.ErrReverted)}
	client := NewClient(transport, nil)

	_, err := client.Stake(context.Background(), big.NewInt(1), nil)
	require.ErrorIs(t, err, ledger.ErrReverted)
	require.Len(t, transport.writes, 1)

	_, err = client.Withdraw(context.Background(), big.NewInt(0), nil)
	require.Error(t, err)
	require.Len(t, transport.writes, 1)
}

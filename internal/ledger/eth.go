package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"stakeScope/internal/contract"
	"stakeScope/internal/model"
)

// Backend is the subset of chain.Client used by EthTransport.
type Backend interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Transact(ctx context.Context, opts *bind.TransactOpts, to common.Address, data []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// EthTransport implements Transport against an EVM JSON-RPC endpoint.
type EthTransport struct {
	backend   Backend
	address   common.Address
	decoder   *contract.Decoder
	batchSize uint64
	logger    *zap.Logger
}

// NewEthTransport binds a backend to one contract address.
func NewEthTransport(backend Backend, address common.Address, batchSize uint64, logger *zap.Logger) (*EthTransport, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := contract.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &EthTransport{
		backend:   backend,
		address:   address,
		decoder:   decoder,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Height returns the latest block number.
func (t *EthTransport) Height(ctx context.Context) (uint64, error) {
	return t.backend.LatestBlockNumber(ctx)
}

// Scalar performs an eth_call of a view method and renders its single output.
func (t *EthTransport) Scalar(ctx context.Context, name string, args ...interface{}) (string, error) {
	if !contract.IsScalar(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownScalar, name)
	}
	data, err := contract.Pack(name, args...)
	if err != nil {
		return "", err
	}
	msg := ethereum.CallMsg{To: &t.address, Data: data}
	resp, err := t.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("call %s: %w", name, ErrNoContract)
	}
	return contract.UnpackScalar(name, resp)
}

// LogRange fetches and decodes every log of kind in [from, to].
func (t *EthTransport) LogRange(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LogRecord, error) {
	topic0, ok := t.decoder.Topic0(kind)
	if !ok {
		return nil, fmt.Errorf("unsupported event kind: %s", kind)
	}
	ranges, err := SplitRange(from, to, t.batchSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	records := make([]model.LogRecord, 0)
	for _, blockRange := range ranges {
		logs, err := t.backend.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{t.address}, []common.Hash{topic0})
		if err != nil {
			return nil, fmt.Errorf("filter %s logs %s: %w", kind, blockRange, err)
		}

		for _, log := range logs {
			if log.Removed || isDuplicate(seen, log) {
				continue
			}
			ts, err := t.backend.BlockTimestamp(ctx, log.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			record, err := t.decoder.Decode(log, ts)
			if err != nil {
				t.logger.Warn("skip undecodable log", zap.Error(err), zap.String("kind", string(kind)))
				continue
			}
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Before(records[j])
	})
	return records, nil
}

// SendWrite signs, submits and waits for a contract write.
func (t *EthTransport) SendWrite(ctx context.Context, req WriteRequest, signer *Signer) (model.Receipt, error) {
	if signer == nil || signer.opts == nil {
		return model.Receipt{}, fmt.Errorf("signer is required")
	}
	data, err := contract.Pack(req.Operation, req.Args...)
	if err != nil {
		return model.Receipt{}, err
	}

	tx, err := t.backend.Transact(ctx, signer.transactOpts(req.Value), t.address, data)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("send %s: %w", req.Operation, err)
	}
	t.logger.Info("write submitted",
		zap.String("operation", req.Operation),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("from", signer.Address().Hex()),
	)

	receipt, err := t.backend.WaitMined(ctx, tx)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("wait %s: %w", req.Operation, err)
	}

	out := model.Receipt{
		TxHash:  receipt.TxHash.Hex(),
		GasUsed: receipt.GasUsed,
		Status:  receipt.Status,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if !out.Succeeded() {
		return out, fmt.Errorf("%s %s: %w", req.Operation, out.TxHash, ErrReverted)
	}
	return out, nil
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}

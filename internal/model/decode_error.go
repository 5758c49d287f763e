package model

import "fmt"

// DecodeError records a decode failure for a raw ledger log.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Err         error  `json:"-"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s:%d (block %d, topic0 %s): %v", e.TxHash, e.LogIndex, e.BlockNumber, e.Topic0, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

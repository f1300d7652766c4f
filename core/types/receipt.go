package types

import "github.com/ethereum/go-ethereum/common"

const (
	ReceiptStatusReverted uint8 = 0
	ReceiptStatusSuccess  uint8 = 1
)

// Receipt records the outcome of an applied transaction. Reverted
// transactions carry the revert reason and no events.
type Receipt struct {
	TxHash    common.Hash    `json:"hash"`
	Sequence  uint64         `json:"sequence"`
	Type      string         `json:"type"`
	From      common.Address `json:"from"`
	Nonce     uint64         `json:"nonce"`
	Status    uint8          `json:"status"`
	Error     string         `json:"error,omitempty"`
	ReportID  *uint64        `json:"reportId,omitempty"`
	Events    []Event        `json:"events"`
	Timestamp int64          `json:"timestamp"`
}

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}

package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/types"
	"pettrace/native/bounty"
)

// SendTransactionResult summarises an applied transaction.
type SendTransactionResult struct {
	Hash     string  `json:"hash"`
	Sequence uint64  `json:"sequence"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	ReportID *uint64 `json:"reportId,omitempty"`
}

// ReportResult is a report plus its derived lifecycle status.
type ReportResult struct {
	*bounty.Report
	Status string `json:"status"`
}

// LostPetIDsResult is one page of not-found report ids.
type LostPetIDsResult struct {
	IDs     []uint64 `json:"ids"`
	HasMore bool     `json:"hasMore"`
}

// AllLostPetsResult carries parallel id and record slices.
type AllLostPetsResult struct {
	IDs     []uint64       `json:"ids"`
	Reports []ReportResult `json:"reports"`
}

// EscrowResult is the stablecoin escrow entry of a report.
type EscrowResult struct {
	ID     uint64   `json:"id"`
	Amount *big.Int `json:"amount"`
}

// AllowanceResult is a cUSD allowance.
type AllowanceResult struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

// ReportEventResult is one archived event.
type ReportEventResult struct {
	TxHash   string      `json:"txHash"`
	Sequence uint64      `json:"sequence"`
	Index    int         `json:"index"`
	Event    types.Event `json:"event"`
}

func statusLabel(r *types.Receipt) string {
	if r.Succeeded() {
		return "success"
	}
	return "reverted"
}

func reportResult(r *bounty.Report) ReportResult {
	return ReportResult{Report: r, Status: r.Status().String()}
}

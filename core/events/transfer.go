package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/types"
)

const (
	// TypeTransfer is emitted for native and stablecoin balance movements.
	TypeTransfer = "transfer"
	// TypeApproval is emitted when a stablecoin allowance is set.
	TypeApproval = "transfer.approval"
)

// Transfer describes a balance movement of Asset.
type Transfer struct {
	Asset  string
	From   common.Address
	To     common.Address
	Amount *big.Int
	TxHash common.Hash
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = e.From.Hex()
	attrs["to"] = e.To.Hex()
	attrs["amount"] = formatAmount(e.Amount)
	if h := FormatHash(e.TxHash); h != "" {
		attrs["txHash"] = h
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// Approval describes an allowance update.
type Approval struct {
	Asset   string
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	attrs := map[string]string{
		"owner":   e.Owner.Hex(),
		"spender": e.Spender.Hex(),
		"amount":  formatAmount(e.Amount),
	}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	return &types.Event{Type: TypeApproval, Attributes: attrs}
}

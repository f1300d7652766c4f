package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/events"
	"pettrace/core/state"
	"pettrace/native/bounty"
)

const (
	NativeAssetSymbol = "CELO"
	StableAssetSymbol = "cUSD"
	StableDecimals    = 18
	NativeDecimals    = 18
)

// nativeLedger moves native balances and reports every movement as a
// transfer event.
type nativeLedger struct {
	manager *state.Manager
	emitter events.Emitter
	txHash  common.Hash
}

func (l nativeLedger) TransferNative(from, to common.Address, amount *big.Int) error {
	if err := l.manager.TransferNative(from, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: NativeAssetSymbol, From: from, To: to, Amount: amount, TxHash: l.txHash})
	return nil
}

// stableLedger is the cUSD token seen through the registry, with transfer
// and approval events.
type stableLedger struct {
	token   *state.Token
	emitter events.Emitter
	txHash  common.Hash
}

func newStableLedger(manager *state.Manager, emitter events.Emitter, txHash common.Hash) stableLedger {
	return stableLedger{
		token:   stableToken(manager),
		emitter: emitter,
		txHash:  txHash,
	}
}

func stableToken(manager *state.Manager) *state.Token {
	return manager.Token(bounty.StableTokenAddress, StableAssetSymbol, StableDecimals)
}

func (l stableLedger) BalanceOf(addr common.Address) (*big.Int, error) {
	return l.token.BalanceOf(addr)
}

func (l stableLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := l.token.Transfer(from, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: StableAssetSymbol, From: from, To: to, Amount: amount, TxHash: l.txHash})
	return nil
}

func (l stableLedger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := l.token.TransferFrom(spender, from, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: StableAssetSymbol, From: from, To: to, Amount: amount, TxHash: l.txHash})
	return nil
}

func (l stableLedger) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := l.token.Approve(owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Asset: StableAssetSymbol, Owner: owner, Spender: spender, Amount: amount})
	return nil
}

package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/types"
)

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrNegativeAmount      = errors.New("state: negative amount")
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount returns the account stored under addr. Missing accounts read as
// empty accounts.
func (m *Manager) GetAccount(addr common.Address) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(AccountKey(addr.Bytes()), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return (&types.Account{Nonce: stored.Nonce, Balance: stored.Balance}).Normalize(), nil
}

// PutAccount persists account under addr.
func (m *Manager) PutAccount(addr common.Address, account *types.Account) error {
	account = account.Normalize()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("account %s: %w", addr.Hex(), ErrNegativeAmount)
	}
	return m.KVPut(AccountKey(addr.Bytes()), storedAccount{
		Nonce:   account.Nonce,
		Balance: new(big.Int).Set(account.Balance),
	})
}

// CreditNative adds amount to addr's native balance.
func (m *Manager) CreditNative(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return m.PutAccount(addr, acc)
}

// TransferNative moves amount of native coin from one account to another.
func (m *Manager) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromAcc.Balance, amount)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	return m.PutAccount(to, toAcc)
}

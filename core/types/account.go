package types

import "math/big"

// Account holds the replay counter and native balance of an address.
// Stablecoin balances are kept by the token ledger, not on the account.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// NewAccount returns an empty account with a zero balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Normalize replaces a nil balance with zero and returns the account.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}

package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientAllowance = errors.New("state: insufficient allowance")

// Token is an ERC-20 shaped ledger stored in state. Balances, allowances and
// supply are keyed by the token's contract address.
type Token struct {
	m        *Manager
	address  common.Address
	symbol   string
	decimals uint8
}

// Token returns a view of the token at address.
func (m *Manager) Token(address common.Address, symbol string, decimals uint8) *Token {
	return &Token{m: m, address: address, symbol: symbol, decimals: decimals}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) balanceKey(owner common.Address) []byte {
	return prefixed(tokenBalancePrefix, t.address.Bytes(), owner.Bytes())
}

func (t *Token) allowanceKey(owner, spender common.Address) []byte {
	return prefixed(tokenAllowancePrefix, t.address.Bytes(), owner.Bytes(), spender.Bytes())
}

func (t *Token) supplyKey() []byte {
	return prefixed(tokenSupplyPrefix, t.address.Bytes())
}

func (t *Token) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := t.m.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (t *Token) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return t.m.KVDelete(key)
	}
	return t.m.KVPut(key, amount)
}

// BalanceOf returns owner's balance.
func (t *Token) BalanceOf(owner common.Address) (*big.Int, error) {
	return t.loadAmount(t.balanceKey(owner))
}

// Allowance returns how much spender may move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) (*big.Int, error) {
	return t.loadAmount(t.allowanceKey(owner, spender))
}

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.loadAmount(t.supplyKey())
}

// Approve sets spender's allowance over owner's balance, replacing any
// previous value.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return t.storeAmount(t.allowanceKey(owner, spender), new(big.Int).Set(amount))
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBal, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s %s holds %s, needs %s", ErrInsufficientBalance, t.symbol, from.Hex(), fromBal, amount)
	}
	if err := t.storeAmount(t.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	return t.storeAmount(t.balanceKey(to), new(big.Int).Add(toBal, amount))
}

// TransferFrom moves amount from one holder to another using spender's
// allowance, which is reduced by amount.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowed, err := t.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allows %s, needs %s", ErrInsufficientAllowance, from.Hex(), allowed, amount)
	}
	if err := t.Transfer(from, to, amount); err != nil {
		return err
	}
	return t.storeAmount(t.allowanceKey(from, spender), new(big.Int).Sub(allowed, amount))
}

// Mint credits amount to holder and grows the supply. Only genesis mints.
func (t *Token) Mint(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := t.BalanceOf(holder)
	if err != nil {
		return err
	}
	if err := t.storeAmount(t.balanceKey(holder), new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	return t.storeAmount(t.supplyKey(), new(big.Int).Add(supply, amount))
}

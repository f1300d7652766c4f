package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nhstate "pettrace/core/state"
	"pettrace/core/types"
	"pettrace/native/bounty"
	"pettrace/storage/receipts"
)

// AccountView is the externally visible state of an address.
type AccountView struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
	Native  *big.Int       `json:"celo"`
	Stable  *big.Int       `json:"cUSD"`
}

// RegistryView summarises registry-wide state.
type RegistryView struct {
	Admin       common.Address `json:"admin"`
	NextID      uint64         `json:"nextPetId"`
	Locked      bool           `json:"locked"`
	Params      bounty.Params  `json:"params"`
	NativeFunds *big.Int       `json:"celoBalance"`
	StableFunds *big.Int       `json:"cUSDBalance"`
}

// reader returns an engine over the committed state. Reads take no lock.
func (n *Node) reader() (*bounty.Engine, *nhstate.Manager, error) {
	mgr := nhstate.NewManager(n.db)
	engine := bounty.NewEngine()
	engine.SetState(mgr)
	params := n.state.Params()
	if err := engine.SetCaps(params.MaxNativeBounty, params.MaxStableBounty); err != nil {
		return nil, nil, fmt.Errorf("query engine: %w", err)
	}
	return engine, mgr, nil
}

func (n *Node) Report(id uint64) (*bounty.Report, error) {
	engine, _, err := n.reader()
	if err != nil {
		return nil, err
	}
	return engine.Report(id)
}

func (n *Node) LostReportIDs(offset, limit uint64) ([]uint64, bool, error) {
	engine, _, err := n.reader()
	if err != nil {
		return nil, false, err
	}
	return engine.LostReportIDs(offset, limit)
}

func (n *Node) LostReportCount() (uint64, error) {
	engine, _, err := n.reader()
	if err != nil {
		return 0, err
	}
	return engine.LostReportCount()
}

func (n *Node) AllLostReports() ([]uint64, []*bounty.Report, error) {
	engine, _, err := n.reader()
	if err != nil {
		return nil, nil, err
	}
	return engine.AllLostReports()
}

func (n *Node) EscrowedStable(id uint64) (*big.Int, error) {
	engine, _, err := n.reader()
	if err != nil {
		return nil, err
	}
	return engine.EscrowedStable(id)
}

// Registry returns the admin, id counter, lock flag, parameters and the
// registry account balances.
func (n *Node) Registry() (*RegistryView, error) {
	engine, mgr, err := n.reader()
	if err != nil {
		return nil, err
	}
	admin, err := engine.Admin()
	if err != nil {
		return nil, err
	}
	next, err := engine.NextID()
	if err != nil {
		return nil, err
	}
	account, err := mgr.GetAccount(bounty.RegistryAddress)
	if err != nil {
		return nil, err
	}
	stable, err := stableToken(mgr).BalanceOf(bounty.RegistryAddress)
	if err != nil {
		return nil, err
	}
	return &RegistryView{
		Admin:       admin,
		NextID:      next,
		Locked:      n.state.Locked(),
		Params:      engine.Params(),
		NativeFunds: account.Balance,
		StableFunds: stable,
	}, nil
}

func (n *Node) Account(addr common.Address) (*AccountView, error) {
	mgr := nhstate.NewManager(n.db)
	account, err := mgr.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	stable, err := stableToken(mgr).BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	return &AccountView{Address: addr, Nonce: account.Nonce, Native: account.Balance, Stable: stable}, nil
}

// Allowance returns how much cUSD spender may pull from owner.
func (n *Node) Allowance(owner, spender common.Address) (*big.Int, error) {
	return stableToken(nhstate.NewManager(n.db)).Allowance(owner, spender)
}

func (n *Node) Receipt(hash common.Hash) (*types.Receipt, error) {
	if n.receipts == nil {
		return nil, ErrReceiptNotFound
	}
	receipt, err := n.receipts.Receipt(hash)
	if errors.Is(err, receipts.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	return receipt, err
}

// RecentReceipts returns up to limit receipts, newest first.
func (n *Node) RecentReceipts(limit int) ([]*types.Receipt, error) {
	if n.receipts == nil {
		return []*types.Receipt{}, nil
	}
	return n.receipts.Recent(limit)
}

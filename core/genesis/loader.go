// core/genesis/loader.go
package genesis

import (
	"errors"
	"fmt"

	"pettrace/core/state"
	"pettrace/native/bounty"
)

// ErrAlreadyInitialised is returned when genesis is applied to a store that
// already carries a chain id.
var ErrAlreadyInitialised = errors.New("genesis: state already initialised")

// Apply writes the genesis state through mgr. mgr should sit on an overlay so
// the caller can commit the result in one batch.
func Apply(spec *GenesisSpec, mgr *state.Manager) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if mgr == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	existing, err := mgr.ChainID()
	if err != nil {
		return err
	}
	if existing != 0 {
		return ErrAlreadyInitialised
	}
	if err := mgr.SetChainID(spec.ChainID); err != nil {
		return fmt.Errorf("set chain id: %w", err)
	}
	if err := mgr.BountySetAdmin(spec.AdminAddress()); err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	token := mgr.Token(bounty.StableTokenAddress, "cUSD", 18)
	for _, alloc := range spec.Allocations() {
		if err := mgr.CreditNative(alloc.Address, alloc.Native); err != nil {
			return fmt.Errorf("alloc %s native: %w", alloc.Address.Hex(), err)
		}
		if alloc.Stable.Sign() > 0 {
			if err := token.Mint(alloc.Address, alloc.Stable); err != nil {
				return fmt.Errorf("alloc %s cusd: %w", alloc.Address.Hex(), err)
			}
		}
	}
	return nil
}

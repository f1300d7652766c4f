package bounty

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/events"
	"pettrace/core/types"
	nativecommon "pettrace/native/common"
)

type engineState interface {
	BountyReportGet(id uint64) (*Report, bool, error)
	BountyReportPut(r *Report) error
	BountyNextID() (uint64, error)
	BountySetNextID(id uint64) error
	BountyAdmin() (common.Address, error)
	BountySetAdmin(addr common.Address) error
	BountyEscrowedStable(id uint64) (*big.Int, error)
	BountySetEscrowedStable(id uint64, amount *big.Int) error
}

// NativeLedger moves native coin between accounts.
type NativeLedger interface {
	TransferNative(from, to common.Address, amount *big.Int) error
}

// StableToken is the ERC-20 surface of the escrowed stablecoin.
type StableToken interface {
	BalanceOf(addr common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

type bountyEvent struct {
	evt *types.Event
}

func (e bountyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bountyEvent) Event() *types.Event { return e.evt }

// Settlement describes a payout or refund.
type Settlement struct {
	ID        uint64
	Recipient common.Address
	Native    *big.Int
	Stable    *big.Int
}

// Engine implements the bounty escrow registry on top of pluggable state and
// ledgers. Every mutating entry point holds the reentrancy guard for its whole
// duration and performs all state writes before any outgoing transfer.
//
// The engine does not roll back on its own. Callers run each entry point
// inside a state overlay and discard it when an error is returned.
type Engine struct {
	state     engineState
	native    NativeLedger
	stable    StableToken
	emitter   events.Emitter
	guard     nativecommon.ReentrancyGuard
	maxNative *big.Int
	maxStable *big.Int
}

// NewEngine creates an engine with the default caps and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		maxNative: cloneBigInt(DefaultMaxNativeBounty),
		maxStable: cloneBigInt(DefaultMaxStableBounty),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedgers configures the native and stablecoin ledgers used for escrow
// movements.
func (e *Engine) SetLedgers(native NativeLedger, stable StableToken) {
	e.native = native
	e.stable = stable
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetCaps overrides the per-report bounty caps. Nil keeps the current value.
func (e *Engine) SetCaps(maxNative, maxStable *big.Int) error {
	if maxNative != nil {
		if _, err := toUint256(maxNative); err != nil {
			return fmt.Errorf("bounty engine: native cap: %w", err)
		}
		e.maxNative = cloneBigInt(maxNative)
	}
	if maxStable != nil {
		if _, err := toUint256(maxStable); err != nil {
			return fmt.Errorf("bounty engine: stable cap: %w", err)
		}
		e.maxStable = cloneBigInt(maxStable)
	}
	return nil
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bountyEvent{evt: event})
}

func (e *Engine) enter() (func(), error) {
	release, err := e.guard.Enter()
	if err != nil {
		return nil, ErrReentrant
	}
	return release, nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.native == nil || e.stable == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) loadReport(id uint64) (*Report, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	report, ok, err := e.state.BountyReportGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// PostLostPet creates a report owned by owner. nativeValue is the native
// amount already credited to the registry account by the caller's
// transaction; stableAmount is pulled from owner through its allowance to the
// registry. Returns the new report id.
func (e *Engine) PostLostPet(owner common.Address, nativeValue *big.Int, listing Listing, stableAmount *big.Int) (uint64, error) {
	release, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer release()
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := ValidateListing(listing); err != nil {
		return 0, err
	}
	if err := ValidateBounties(nativeValue, stableAmount, e.maxNative, e.maxStable); err != nil {
		return 0, err
	}
	native := cloneBigInt(nativeValue)
	stable := cloneBigInt(stableAmount)

	id, err := e.state.BountyNextID()
	if err != nil {
		return 0, err
	}
	report := &Report{
		ID:           id,
		Owner:        owner,
		Listing:      listing,
		NativeBounty: native,
		StableBounty: stable,
	}
	if err := e.state.BountyReportPut(report); err != nil {
		return 0, err
	}
	if err := e.state.BountySetEscrowedStable(id, stable); err != nil {
		return 0, err
	}
	if err := e.state.BountySetNextID(id + 1); err != nil {
		return 0, err
	}
	if stable.Sign() > 0 {
		if err := e.stable.TransferFrom(RegistryAddress, owner, RegistryAddress, stable); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	e.emit(NewPetPostedEvent(report))
	return id, nil
}

// MarkAsFound assigns caller as the report's finder. Finder assignment is
// one-shot.
func (e *Engine) MarkAsFound(caller common.Address, id uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	report, err := e.loadReport(id)
	if err != nil {
		return err
	}
	if caller == report.Owner {
		return ErrOwnerCannotFind
	}
	if report.HasFinder() || report.IsFound {
		return ErrAlreadyFound
	}
	report.Finder = caller
	report.FinderConfirmed = true
	report.IsFound = report.FinderConfirmed && report.OwnerConfirmed
	if err := e.state.BountyReportPut(report); err != nil {
		return err
	}
	e.emit(NewConfirmationAddedEvent(id, caller, false))
	return nil
}

// ConfirmFoundByOwner records the owner's confirmation, completing the
// found handshake.
func (e *Engine) ConfirmFoundByOwner(caller common.Address, id uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	report, err := e.loadReport(id)
	if err != nil {
		return err
	}
	if caller != report.Owner {
		return ErrNotOwner
	}
	if !report.HasFinder() {
		return ErrNoFinder
	}
	if report.OwnerConfirmed {
		return ErrAlreadyConfirmed
	}
	report.OwnerConfirmed = true
	report.IsFound = report.FinderConfirmed && report.OwnerConfirmed
	if err := e.state.BountyReportPut(report); err != nil {
		return err
	}
	e.emit(NewConfirmationAddedEvent(id, caller, true))
	if report.IsFound {
		e.emit(NewPetFoundEvent(report))
	}
	return nil
}

// ClaimBounty pays both escrowed legs to the confirmed finder.
func (e *Engine) ClaimBounty(caller common.Address, id uint64) (*Settlement, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ready(); err != nil {
		return nil, err
	}
	report, err := e.loadReport(id)
	if err != nil {
		return nil, err
	}
	if !report.HasFinder() || caller != report.Finder {
		return nil, ErrNotFinder
	}
	if !report.HasBounty() {
		return nil, ErrNoBounty
	}
	if !report.IsFound {
		return nil, ErrNotFoundYet
	}
	settlement, err := e.settle(report, report.Finder, StatusPaidOut)
	if err != nil {
		return nil, err
	}
	e.emit(NewBountyClaimedEvent(id, report.Finder, settlement.Native, settlement.Stable))
	return settlement, nil
}

// CancelAndRefund returns both escrowed legs to the owner. Only allowed
// before a finder is assigned.
func (e *Engine) CancelAndRefund(caller common.Address, id uint64) (*Settlement, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ready(); err != nil {
		return nil, err
	}
	report, err := e.loadReport(id)
	if err != nil {
		return nil, err
	}
	if caller != report.Owner {
		return nil, ErrNotOwner
	}
	if report.HasFinder() {
		return nil, ErrFinderAssigned
	}
	if !report.HasBounty() {
		return nil, ErrNoBounty
	}
	settlement, err := e.settle(report, report.Owner, StatusRefunded)
	if err != nil {
		return nil, err
	}
	e.emit(NewBountyRefundedEvent(id, report.Owner, settlement.Native, settlement.Stable))
	return settlement, nil
}

// settle zeroes every escrow record of the report, records outcome,
// persists it, then pays the snapshot to recipient.
func (e *Engine) settle(report *Report, recipient common.Address, outcome Status) (*Settlement, error) {
	native := cloneBigInt(report.NativeBounty)
	stable := cloneBigInt(report.StableBounty)

	report.NativeBounty = big.NewInt(0)
	report.StableBounty = big.NewInt(0)
	report.Outcome = outcome
	if err := e.state.BountyReportPut(report); err != nil {
		return nil, err
	}
	if err := e.state.BountySetEscrowedStable(report.ID, big.NewInt(0)); err != nil {
		return nil, err
	}

	if native.Sign() > 0 {
		if err := e.native.TransferNative(RegistryAddress, recipient, native); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if stable.Sign() > 0 {
		if err := e.stable.Transfer(RegistryAddress, recipient, stable); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	return &Settlement{ID: report.ID, Recipient: recipient, Native: native, Stable: stable}, nil
}

// TransferAdmin hands the admin role to newAdmin in a single step.
func (e *Engine) TransferAdmin(caller, newAdmin common.Address) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if e.state == nil {
		return errNilState
	}
	admin, err := e.state.BountyAdmin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrNotAdmin
	}
	if newAdmin == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := e.state.BountySetAdmin(newAdmin); err != nil {
		return err
	}
	e.emit(NewAdminChangedEvent(admin, newAdmin))
	return nil
}

// EmergencyWithdrawStable sweeps the registry's entire stablecoin balance to
// to. Per-report escrow records are left untouched, so reports funded in
// stablecoin can no longer be settled afterwards.
func (e *Engine) EmergencyWithdrawStable(caller, to common.Address) (*big.Int, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ready(); err != nil {
		return nil, err
	}
	admin, err := e.state.BountyAdmin()
	if err != nil {
		return nil, err
	}
	if caller != admin {
		return nil, ErrNotAdmin
	}
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	balance, err := e.stable.BalanceOf(RegistryAddress)
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(balance)
	if amount.Sign() > 0 {
		if err := e.stable.Transfer(RegistryAddress, to, amount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	e.emit(NewEmergencyWithdrawalEvent(admin, to, amount))
	return amount, nil
}

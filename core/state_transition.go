package core

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/events"
	"pettrace/core/state"
	"pettrace/core/types"
	"pettrace/native/bounty"
)

// ExecutionResult is the outcome of a successfully executed transaction.
type ExecutionResult struct {
	ReportID *uint64
	Events   []types.Event
}

// StateProcessor executes transaction payloads against a state manager. It
// owns the single registry engine, so the registry's reentrancy lock spans
// every transaction applied through it. The processor never commits; the
// caller runs it on an overlay and decides what to keep.
type StateProcessor struct {
	engine *bounty.Engine
	buffer events.Buffer
}

func NewStateProcessor() *StateProcessor {
	return &StateProcessor{engine: bounty.NewEngine()}
}

// SetCaps overrides the registry bounty caps.
func (sp *StateProcessor) SetCaps(maxNative, maxStable *big.Int) error {
	return sp.engine.SetCaps(maxNative, maxStable)
}

// Params exposes the registry parameters in force.
func (sp *StateProcessor) Params() bounty.Params {
	return sp.engine.Params()
}

// Locked reports whether a registry entry point is currently executing.
func (sp *StateProcessor) Locked() bool {
	return sp.engine.Locked()
}

// ApplyTransaction moves the attached value and executes the payload of tx
// sent by from. Any error means the caller must discard every write made
// through manager.
func (sp *StateProcessor) ApplyTransaction(manager *state.Manager, tx *types.Transaction, from common.Address) (*ExecutionResult, error) {
	if manager == nil || tx == nil {
		return nil, fmt.Errorf("apply transaction: nil input")
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sp.buffer.Reset()
	defer sp.buffer.Reset()

	native := nativeLedger{manager: manager, emitter: &sp.buffer, txHash: hash}
	stable := newStableLedger(manager, &sp.buffer, hash)
	sp.engine.SetState(manager)
	sp.engine.SetLedgers(native, stable)
	sp.engine.SetEmitter(&sp.buffer)

	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", ErrValueNotAccepted)
	}
	if value.Sign() > 0 && !tx.Type.Payable() {
		return nil, fmt.Errorf("%w: %s is not payable", ErrValueNotAccepted, tx.Type)
	}

	result := &ExecutionResult{}
	switch tx.Type {
	case types.TxTypeTransfer:
		var payload types.TransferPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if err := native.TransferNative(from, payload.To, value); err != nil {
			return nil, err
		}
	case types.TxTypeStableApprove:
		var payload types.StableApprovePayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if err := stable.Approve(from, payload.Spender, payload.Amount); err != nil {
			return nil, err
		}
	case types.TxTypeStableTransfer:
		var payload types.StableTransferPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if payload.Amount == nil {
			return nil, fmt.Errorf("%w: amount required", ErrInvalidPayload)
		}
		if err := stable.Transfer(from, payload.To, payload.Amount); err != nil {
			return nil, err
		}
	case types.TxTypePostLostPet:
		var payload types.PostLostPetPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if err := native.TransferNative(from, bounty.RegistryAddress, value); err != nil {
			return nil, err
		}
		stableAmount := payload.StableBounty
		if stableAmount == nil {
			stableAmount = new(big.Int)
		}
		id, err := sp.engine.PostLostPet(from, value, listingFromPayload(payload), stableAmount)
		if err != nil {
			return nil, err
		}
		result.ReportID = &id
	case types.TxTypeMarkFound, types.TxTypeConfirmFound, types.TxTypeClaimBounty, types.TxTypeCancelAndRefund:
		var payload types.ReportPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if err := sp.applyReportAction(tx.Type, from, payload.ID); err != nil {
			return nil, err
		}
		id := payload.ID
		result.ReportID = &id
	case types.TxTypeTransferAdmin:
		var payload types.TransferAdminPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if err := sp.engine.TransferAdmin(from, payload.NewAdmin); err != nil {
			return nil, err
		}
	case types.TxTypeEmergencyWithdraw:
		var payload types.EmergencyWithdrawPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		if _, err := sp.engine.EmergencyWithdrawStable(from, payload.To); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.Type)
	}
	result.Events = sp.buffer.Events()
	return result, nil
}

func (sp *StateProcessor) applyReportAction(txType types.TxType, from common.Address, id uint64) error {
	switch txType {
	case types.TxTypeMarkFound:
		return sp.engine.MarkAsFound(from, id)
	case types.TxTypeConfirmFound:
		return sp.engine.ConfirmFoundByOwner(from, id)
	case types.TxTypeClaimBounty:
		_, err := sp.engine.ClaimBounty(from, id)
		return err
	case types.TxTypeCancelAndRefund:
		_, err := sp.engine.CancelAndRefund(from, id)
		return err
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedTxType, txType)
}

func decodePayload(data []byte, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func listingFromPayload(p types.PostLostPetPayload) bounty.Listing {
	return bounty.Listing{
		Name:             p.Name,
		Breed:            p.Breed,
		Gender:           p.Gender,
		SizeCm:           p.SizeCm,
		AgeMonths:        p.AgeMonths,
		DateTimeLost:     p.DateTimeLost,
		Description:      p.Description,
		ImageURL:         p.ImageURL,
		LastSeenLocation: p.LastSeenLocation,
		ContactName:      p.ContactName,
		ContactPhone:     p.ContactPhone,
		ContactEmail:     p.ContactEmail,
	}
}

package bounty

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/types"
)

const (
	EventTypePetPosted           = "pettrace.pet_posted"
	EventTypeConfirmationAdded   = "pettrace.confirmation_added"
	EventTypePetFound            = "pettrace.pet_found"
	EventTypeBountyClaimed       = "pettrace.bounty_claimed"
	EventTypeBountyRefunded      = "pettrace.bounty_refunded"
	EventTypeAdminChanged        = "pettrace.admin_changed"
	EventTypeEmergencyWithdrawal = "pettrace.emergency_withdrawal"
)

// NewPetPostedEvent returns the payload emitted when a report is created.
func NewPetPostedEvent(r *Report) *types.Event {
	attrs := reportAttrs(r)
	if r != nil {
		attrs["owner"] = r.Owner.Hex()
		attrs["celoBounty"] = amountString(r.NativeBounty)
		attrs["cUSDBounty"] = amountString(r.StableBounty)
	}
	return &types.Event{Type: EventTypePetPosted, Attributes: attrs}
}

// NewConfirmationAddedEvent is emitted for both the finder's and the owner's
// confirmation; byOwner tells them apart.
func NewConfirmationAddedEvent(id uint64, confirmer common.Address, byOwner bool) *types.Event {
	return &types.Event{Type: EventTypeConfirmationAdded, Attributes: map[string]string{
		"id":        strconv.FormatUint(id, 10),
		"confirmer": confirmer.Hex(),
		"isOwner":   strconv.FormatBool(byOwner),
	}}
}

// NewPetFoundEvent is emitted once both parties have confirmed.
func NewPetFoundEvent(r *Report) *types.Event {
	attrs := reportAttrs(r)
	if r != nil {
		attrs["finder"] = r.Finder.Hex()
	}
	return &types.Event{Type: EventTypePetFound, Attributes: attrs}
}

// NewBountyClaimedEvent records a payout to the finder.
func NewBountyClaimedEvent(id uint64, finder common.Address, native, stable *big.Int) *types.Event {
	return settlementEvent(EventTypeBountyClaimed, "finder", id, finder, native, stable)
}

// NewBountyRefundedEvent records a refund to the owner.
func NewBountyRefundedEvent(id uint64, owner common.Address, native, stable *big.Int) *types.Event {
	return settlementEvent(EventTypeBountyRefunded, "owner", id, owner, native, stable)
}

func NewAdminChangedEvent(previous, next common.Address) *types.Event {
	return &types.Event{Type: EventTypeAdminChanged, Attributes: map[string]string{
		"previousAdmin": previous.Hex(),
		"newAdmin":      next.Hex(),
	}}
}

func NewEmergencyWithdrawalEvent(admin, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeEmergencyWithdrawal, Attributes: map[string]string{
		"admin":  admin.Hex(),
		"to":     to.Hex(),
		"amount": amountString(amount),
	}}
}

func settlementEvent(eventType, role string, id uint64, recipient common.Address, native, stable *big.Int) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"id":         strconv.FormatUint(id, 10),
		role:         recipient.Hex(),
		"celoAmount": amountString(native),
		"cUSDAmount": amountString(stable),
	}}
}

func reportAttrs(r *Report) map[string]string {
	attrs := make(map[string]string)
	if r == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(r.ID, 10)
	return attrs
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ReportIDAttr extracts the report id from a registry event, if present.
func ReportIDAttr(evt *types.Event) (uint64, bool) {
	if evt == nil {
		return 0, false
	}
	raw, ok := evt.Attributes["id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferPayload is the data of a native transfer. The amount is the
// transaction value.
type TransferPayload struct {
	To common.Address `json:"to"`
}

// StableApprovePayload sets the cUSD allowance of Spender.
type StableApprovePayload struct {
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

// StableTransferPayload moves cUSD from the sender.
type StableTransferPayload struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// PostLostPetPayload carries the report fields. The native bounty is the
// transaction value.
type PostLostPetPayload struct {
	Name             string   `json:"name"`
	Breed            string   `json:"breed"`
	Gender           string   `json:"gender"`
	SizeCm           uint64   `json:"sizeCm"`
	AgeMonths        uint64   `json:"ageMonths"`
	DateTimeLost     string   `json:"dateTimeLost"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"imageUrl"`
	LastSeenLocation string   `json:"lastSeenLocation"`
	ContactName      string   `json:"contactName"`
	ContactPhone     string   `json:"contactPhone"`
	ContactEmail     string   `json:"contactEmail"`
	StableBounty     *big.Int `json:"cUSDBounty"`
}

// ReportPayload addresses a single report.
type ReportPayload struct {
	ID uint64 `json:"id"`
}

// TransferAdminPayload names the next registry admin.
type TransferAdminPayload struct {
	NewAdmin common.Address `json:"newAdmin"`
}

// EmergencyWithdrawPayload names the sweep destination.
type EmergencyWithdrawPayload struct {
	To common.Address `json:"to"`
}

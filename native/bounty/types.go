package bounty

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Field limits. Lengths are measured in bytes.
const (
	MinNameLen         = 2
	MaxNameLen         = 50
	MaxBreedLen        = 50
	MaxGenderLen       = 20
	MaxDateTimeLen     = 64
	MaxDescriptionLen  = 500
	MaxImageURLLen     = 256
	MaxLocationLen     = 200
	MaxContactNameLen  = 100
	MaxContactPhoneLen = 32
	MaxContactEmailLen = 254
)

// StableTokenAddress is the cUSD contract the registry escrows.
var StableTokenAddress = common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a")

// RegistryAddress is the module account that holds escrowed funds.
var RegistryAddress = common.HexToAddress("0x00000000000000000000000000000000000bb7e5")

// Default bounty caps, in the smallest unit of each currency (18 decimals).
var (
	DefaultMaxNativeBounty = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	DefaultMaxStableBounty = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))
)

// Status is the lifecycle position of a report.
type Status uint8

const (
	StatusCreated Status = iota
	StatusFinderAssigned
	StatusFoundConfirmed
	StatusPaidOut
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFinderAssigned:
		return "finder_assigned"
	case StatusFoundConfirmed:
		return "found_confirmed"
	case StatusPaidOut:
		return "paid_out"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Listing is the owner supplied description of a lost pet. Every field is
// stored verbatim once it passes the length checks.
type Listing struct {
	Name             string `json:"name"`
	Breed            string `json:"breed"`
	Gender           string `json:"gender"`
	SizeCm           uint64 `json:"sizeCm"`
	AgeMonths        uint64 `json:"ageMonths"`
	DateTimeLost     string `json:"dateTimeLost"`
	Description      string `json:"description"`
	ImageURL         string `json:"imageUrl"`
	LastSeenLocation string `json:"lastSeenLocation"`
	ContactName      string `json:"contactName"`
	ContactPhone     string `json:"contactPhone"`
	ContactEmail     string `json:"contactEmail"`
}

// Report is a lost-pet record together with its escrowed bounties.
type Report struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`
	Listing

	NativeBounty *big.Int `json:"celoBounty"`
	StableBounty *big.Int `json:"cUSDBounty"`

	Finder          common.Address `json:"finder"`
	FinderConfirmed bool           `json:"finderConfirmed"`
	OwnerConfirmed  bool           `json:"ownerConfirmed"`
	IsFound         bool           `json:"isFound"`

	// Outcome is StatusPaidOut or StatusRefunded once the escrow settles.
	Outcome Status `json:"-"`
}

// HasFinder reports whether a finder has been assigned.
func (r *Report) HasFinder() bool {
	return r != nil && r.Finder != (common.Address{})
}

// HasBounty reports whether any escrowed amount remains.
func (r *Report) HasBounty() bool {
	if r == nil {
		return false
	}
	return isPositive(r.NativeBounty) || isPositive(r.StableBounty)
}

// Status returns the lifecycle position. A settled report keeps its terminal
// outcome even if found-marking continues afterwards.
func (r *Report) Status() Status {
	switch {
	case r == nil:
		return StatusCreated
	case r.Outcome == StatusPaidOut || r.Outcome == StatusRefunded:
		return r.Outcome
	case r.IsFound:
		return StatusFoundConfirmed
	case r.HasFinder():
		return StatusFinderAssigned
	default:
		return StatusCreated
	}
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	clone := *r
	clone.NativeBounty = cloneBigInt(r.NativeBounty)
	clone.StableBounty = cloneBigInt(r.StableBounty)
	return &clone
}

// Params exposes the registry configuration.
type Params struct {
	MaxNativeBounty *big.Int       `json:"maxCeloBounty"`
	MaxStableBounty *big.Int       `json:"maxCUSDBounty"`
	StableToken     common.Address `json:"cUSDToken"`
	Registry        common.Address `json:"registry"`
	Limits          Limits         `json:"limits"`
}

// Limits lists the field length bounds.
type Limits struct {
	MinNameLen         int `json:"minNameLen"`
	MaxNameLen         int `json:"maxNameLen"`
	MaxBreedLen        int `json:"maxBreedLen"`
	MaxGenderLen       int `json:"maxGenderLen"`
	MaxDateTimeLen     int `json:"maxDateTimeLen"`
	MaxDescriptionLen  int `json:"maxDescriptionLen"`
	MaxImageURLLen     int `json:"maxImageUrlLen"`
	MaxLocationLen     int `json:"maxLocationLen"`
	MaxContactNameLen  int `json:"maxContactNameLen"`
	MaxContactPhoneLen int `json:"maxContactPhoneLen"`
	MaxContactEmailLen int `json:"maxContactEmailLen"`
}

// DefaultLimits returns the compiled-in field bounds.
func DefaultLimits() Limits {
	return Limits{
		MinNameLen:         MinNameLen,
		MaxNameLen:         MaxNameLen,
		MaxBreedLen:        MaxBreedLen,
		MaxGenderLen:       MaxGenderLen,
		MaxDateTimeLen:     MaxDateTimeLen,
		MaxDescriptionLen:  MaxDescriptionLen,
		MaxImageURLLen:     MaxImageURLLen,
		MaxLocationLen:     MaxLocationLen,
		MaxContactNameLen:  MaxContactNameLen,
		MaxContactPhoneLen: MaxContactPhoneLen,
		MaxContactEmailLen: MaxContactEmailLen,
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

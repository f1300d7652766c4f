package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pettrace/native/bounty"
)

type storedReport struct {
	ID               uint64
	Owner            common.Address
	Name             string
	Breed            string
	Gender           string
	SizeCm           uint64
	AgeMonths        uint64
	DateTimeLost     string
	Description      string
	ImageURL         string
	LastSeenLocation string
	ContactName      string
	ContactPhone     string
	ContactEmail     string
	NativeBounty     *big.Int
	StableBounty     *big.Int
	Finder           common.Address
	FinderConfirmed  bool
	OwnerConfirmed   bool
	IsFound          bool
	Outcome          uint8
}

func newStoredReport(r *bounty.Report) storedReport {
	return storedReport{
		ID:               r.ID,
		Owner:            r.Owner,
		Name:             r.Name,
		Breed:            r.Breed,
		Gender:           r.Gender,
		SizeCm:           r.SizeCm,
		AgeMonths:        r.AgeMonths,
		DateTimeLost:     r.DateTimeLost,
		Description:      r.Description,
		ImageURL:         r.ImageURL,
		LastSeenLocation: r.LastSeenLocation,
		ContactName:      r.ContactName,
		ContactPhone:     r.ContactPhone,
		ContactEmail:     r.ContactEmail,
		NativeBounty:     amountOrZero(r.NativeBounty),
		StableBounty:     amountOrZero(r.StableBounty),
		Finder:           r.Finder,
		FinderConfirmed:  r.FinderConfirmed,
		OwnerConfirmed:   r.OwnerConfirmed,
		IsFound:          r.IsFound,
		Outcome:          uint8(r.Outcome),
	}
}

func (s storedReport) report() *bounty.Report {
	return &bounty.Report{
		ID:    s.ID,
		Owner: s.Owner,
		Listing: bounty.Listing{
			Name:             s.Name,
			Breed:            s.Breed,
			Gender:           s.Gender,
			SizeCm:           s.SizeCm,
			AgeMonths:        s.AgeMonths,
			DateTimeLost:     s.DateTimeLost,
			Description:      s.Description,
			ImageURL:         s.ImageURL,
			LastSeenLocation: s.LastSeenLocation,
			ContactName:      s.ContactName,
			ContactPhone:     s.ContactPhone,
			ContactEmail:     s.ContactEmail,
		},
		NativeBounty:    amountOrZero(s.NativeBounty),
		StableBounty:    amountOrZero(s.StableBounty),
		Finder:          s.Finder,
		FinderConfirmed: s.FinderConfirmed,
		OwnerConfirmed:  s.OwnerConfirmed,
		IsFound:         s.IsFound,
		Outcome:         bounty.Status(s.Outcome),
	}
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// BountyReportGet loads a report.
func (m *Manager) BountyReportGet(id uint64) (*bounty.Report, bool, error) {
	var stored storedReport
	ok, err := m.KVGet(BountyReportKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.report(), true, nil
}

// BountyReportPut persists a report under its id.
func (m *Manager) BountyReportPut(r *bounty.Report) error {
	if r == nil {
		return fmt.Errorf("bounty: nil report")
	}
	return m.KVPut(BountyReportKey(r.ID), newStoredReport(r))
}

// BountyNextID returns the id the next report receives.
func (m *Manager) BountyNextID() (uint64, error) {
	var next uint64
	if _, err := m.KVGet(bountyNextIDKey, &next); err != nil {
		return 0, err
	}
	return next, nil
}

// BountySetNextID advances the id counter.
func (m *Manager) BountySetNextID(id uint64) error {
	current, err := m.BountyNextID()
	if err != nil {
		return err
	}
	if id < current {
		return fmt.Errorf("bounty: next id cannot move backwards (%d < %d)", id, current)
	}
	return m.KVPut(bountyNextIDKey, id)
}

// BountyAdmin returns the registry admin.
func (m *Manager) BountyAdmin() (common.Address, error) {
	var admin common.Address
	if _, err := m.KVGet(bountyAdminKey, &admin); err != nil {
		return common.Address{}, err
	}
	return admin, nil
}

// BountySetAdmin replaces the registry admin.
func (m *Manager) BountySetAdmin(addr common.Address) error {
	return m.KVPut(bountyAdminKey, addr)
}

// BountyEscrowedStable returns the stablecoin escrow entry for id.
func (m *Manager) BountyEscrowedStable(id uint64) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := m.KVGet(BountyEscrowKey(id), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// BountySetEscrowedStable records the stablecoin escrow entry for id. Zero
// clears the entry.
func (m *Manager) BountySetEscrowedStable(id uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(BountyEscrowKey(id))
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return m.KVPut(BountyEscrowKey(id), amount)
}

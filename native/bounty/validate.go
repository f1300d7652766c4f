package bounty

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ValidateListing checks the descriptive fields of a new report.
func ValidateListing(l Listing) error {
	if n := len(l.Name); n < MinNameLen || n > MaxNameLen {
		return ErrNameLength
	}
	if err := validateEmail(l.ContactEmail); err != nil {
		return err
	}
	bounded := []struct {
		field string
		value string
		max   int
	}{
		{"breed", l.Breed, MaxBreedLen},
		{"gender", l.Gender, MaxGenderLen},
		{"dateTimeLost", l.DateTimeLost, MaxDateTimeLen},
		{"description", l.Description, MaxDescriptionLen},
		{"imageUrl", l.ImageURL, MaxImageURLLen},
		{"lastSeenLocation", l.LastSeenLocation, MaxLocationLen},
		{"contactName", l.ContactName, MaxContactNameLen},
		{"contactPhone", l.ContactPhone, MaxContactPhoneLen},
	}
	for _, b := range bounded {
		if len(b.value) > b.max {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrFieldTooLong, b.field, b.max)
		}
	}
	return nil
}

// validateEmail accepts the empty string. Otherwise the address must carry an
// '@' followed later by a '.', and no surrounding whitespace.
func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > MaxContactEmailLen {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(email) != email {
		return ErrInvalidEmail
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return ErrInvalidEmail
	}
	if !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateBounties checks the attached amounts against the caps. At least one
// leg must be positive.
func ValidateBounties(native, stable, maxNative, maxStable *big.Int) error {
	n, err := toUint256(native)
	if err != nil {
		return err
	}
	s, err := toUint256(stable)
	if err != nil {
		return err
	}
	if n.IsZero() && s.IsZero() {
		return ErrBountyRequired
	}
	if capN, err := toUint256(maxNative); err == nil && n.Gt(capN) {
		return ErrNativeBountyCap
	}
	if capS, err := toUint256(maxStable); err == nil && s.Gt(capS) {
		return ErrStableBountyCap
	}
	return nil
}

// toUint256 rejects negative amounts and amounts wider than 256 bits. Nil is
// treated as zero.
func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrAmountOutOfRange
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrAmountOutOfRange
	}
	return out, nil
}

package bounty

import "errors"

// Revert reasons. The strings are what clients match on, so they are kept
// exactly as published.
var (
	ErrNameLength       = errors.New("Name length invalid")
	ErrInvalidEmail     = errors.New("Invalid email")
	ErrFieldTooLong     = errors.New("Field too long")
	ErrBountyRequired   = errors.New("Bounty required")
	ErrNativeBountyCap  = errors.New("CELO bounty too large")
	ErrStableBountyCap  = errors.New("cUSD bounty too large")
	ErrOwnerCannotFind  = errors.New("Owner cannot be finder")
	ErrAlreadyFound     = errors.New("Already found")
	ErrNotOwner         = errors.New("Not owner")
	ErrNoFinder         = errors.New("No finder yet")
	ErrAlreadyConfirmed = errors.New("Already confirmed")
	ErrNotFinder        = errors.New("Not finder")
	ErrNotFoundYet      = errors.New("Not found yet")
	ErrNoBounty         = errors.New("No bounty")
	ErrFinderAssigned   = errors.New("Finder already assigned")
	ErrNotAdmin         = errors.New("Not admin")
	ErrReportNotFound   = errors.New("Pet does not exist")
	ErrReentrant        = errors.New("Reentrant call")
	ErrTransferFailed   = errors.New("Transfer failed")
	ErrZeroAddress      = errors.New("Zero address")
	ErrAmountOutOfRange = errors.New("Amount out of range")
)

var (
	errNilState  = errors.New("bounty engine: state not configured")
	errNilLedger = errors.New("bounty engine: ledgers not configured")
)

// Classification groups revert reasons for callers that map them onto
// transport error codes.
type Classification int

const (
	ClassInternal Classification = iota
	ClassInvalid
	ClassNotFound
	ClassForbidden
	ClassConflict
)

// Classify maps err onto a Classification.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ClassInternal
	case errors.Is(err, ErrNameLength), errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrFieldTooLong), errors.Is(err, ErrBountyRequired),
		errors.Is(err, ErrNativeBountyCap), errors.Is(err, ErrStableBountyCap),
		errors.Is(err, ErrZeroAddress), errors.Is(err, ErrAmountOutOfRange):
		return ClassInvalid
	case errors.Is(err, ErrReportNotFound):
		return ClassNotFound
	case errors.Is(err, ErrOwnerCannotFind), errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNotFinder), errors.Is(err, ErrNotAdmin):
		return ClassForbidden
	case errors.Is(err, ErrAlreadyFound), errors.Is(err, ErrNoFinder),
		errors.Is(err, ErrAlreadyConfirmed), errors.Is(err, ErrNotFoundYet),
		errors.Is(err, ErrNoBounty), errors.Is(err, ErrFinderAssigned),
		errors.Is(err, ErrReentrant), errors.Is(err, ErrTransferFailed):
		return ClassConflict
	default:
		return ClassInternal
	}
}

// Reason returns the revert reason carried by err, or err's text when it
// wraps no known reason.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range reasons {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

var reasons = []error{
	ErrNameLength, ErrInvalidEmail, ErrFieldTooLong, ErrBountyRequired,
	ErrNativeBountyCap, ErrStableBountyCap, ErrOwnerCannotFind, ErrAlreadyFound,
	ErrNotOwner, ErrNoFinder, ErrAlreadyConfirmed, ErrNotFinder, ErrNotFoundYet,
	ErrNoBounty, ErrFinderAssigned, ErrNotAdmin, ErrReportNotFound, ErrReentrant,
	ErrTransferFailed, ErrZeroAddress, ErrAmountOutOfRange,
}

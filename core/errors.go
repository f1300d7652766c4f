package core

import "errors"

// Rejections. A transaction failing one of these checks is not applied and
// does not consume its nonce.
var (
	ErrInvalidChainID     = errors.New("invalid chain id")
	ErrNonceMismatch      = errors.New("nonce mismatch")
	ErrUnsupportedTxType  = errors.New("unsupported transaction type")
	ErrKnownTransaction   = errors.New("transaction already applied")
	ErrNodeNotInitialised = errors.New("node state not initialised")
)

// Reverts. These are recorded in the receipt of an applied transaction.
var (
	ErrValueNotAccepted = errors.New("value not accepted")
	ErrInvalidPayload   = errors.New("invalid payload")
)

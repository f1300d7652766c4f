package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer          TxType = 0x01 // Native coin transfer
	TxTypeStableApprove     TxType = 0x02 // cUSD allowance for a spender
	TxTypeStableTransfer    TxType = 0x03 // cUSD transfer
	TxTypePostLostPet       TxType = 0x10
	TxTypeMarkFound         TxType = 0x11
	TxTypeConfirmFound      TxType = 0x12
	TxTypeClaimBounty       TxType = 0x13
	TxTypeCancelAndRefund   TxType = 0x14
	TxTypeTransferAdmin     TxType = 0x15
	TxTypeEmergencyWithdraw TxType = 0x16
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:          "transfer",
	TxTypeStableApprove:     "stable_approve",
	TxTypeStableTransfer:    "stable_transfer",
	TxTypePostLostPet:       "post_lost_pet",
	TxTypeMarkFound:         "mark_as_found",
	TxTypeConfirmFound:      "confirm_found_by_owner",
	TxTypeClaimBounty:       "claim_bounty",
	TxTypeCancelAndRefund:   "cancel_and_refund",
	TxTypeTransferAdmin:     "transfer_admin",
	TxTypeEmergencyWithdraw: "emergency_withdraw_cusd",
}

func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether the type is known to the state processor.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// Payable reports whether a transaction of this type may carry native value.
func (t TxType) Payable() bool {
	return t == TxTypeTransfer || t == TxTypePostLostPet
}

var (
	ErrMissingSignature = errors.New("transaction: missing signature")
	ErrInvalidSignature = errors.New("transaction: invalid signature")
)

// Transaction is a signed request to mutate state. Data carries the JSON
// payload for the type; Value is the attached native amount.
type Transaction struct {
	ChainID *big.Int `json:"chainId"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Value   *big.Int `json:"value"`
	Data    []byte   `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

type txSigningPayload struct {
	ChainID *big.Int
	Type    uint8
	Nonce   uint64
	Value   *big.Int
	Data    []byte
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Hash returns keccak256 over the RLP encoding of the unsigned fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	if tx.ChainID != nil && tx.ChainID.Sign() < 0 {
		return common.Hash{}, errors.New("transaction: negative chain id")
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return common.Hash{}, errors.New("transaction: negative value")
	}
	encoded, err := rlp.EncodeToBytes(txSigningPayload{
		ChainID: bigOrZero(tx.ChainID),
		Type:    uint8(tx.Type),
		Nonce:   tx.Nonce,
		Value:   bigOrZero(tx.Value),
		Data:    tx.Data,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Sign populates R, S and V from a secp256k1 signature over Hash.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	if tx.R.BitLen() > 256 || tx.S.BitLen() > 256 || !tx.V.IsUint64() {
		return common.Address{}, ErrInvalidSignature
	}
	v := tx.V.Uint64()
	if v != 27 && v != 28 {
		return common.Address{}, ErrInvalidSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	tx.R.FillBytes(sig[:32])
	tx.S.FillBytes(sig[32:64])
	sig[64] = byte(v - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	addr := crypto.PubkeyToAddress(*pubKey)
	tx.from = &addr
	return addr, nil
}

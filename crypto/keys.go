package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address is a 20-byte account address rendered as EIP-55 checksummed hex.
type Address = common.Address

// ZeroAddress is the unset address.
var ZeroAddress Address

// DecodeAddress parses a 0x-prefixed hex address. Mixed-case input must carry
// a valid checksum; all-lower and all-upper input is accepted as is.
func DecodeAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if !common.IsHexAddress(trimmed) {
		return Address{}, fmt.Errorf("invalid address %q", addrStr)
	}
	addr := common.HexToAddress(trimmed)
	body := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return Address{}, fmt.Errorf("invalid address checksum %q", addrStr)
		}
	}
	return addr, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Hex returns the 0x-prefixed private key bytes.
func (k *PrivateKey) Hex() string {
	return hexutil.Encode(k.Bytes())
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex decodes a hex private key with or without the 0x prefix.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

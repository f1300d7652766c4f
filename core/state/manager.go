package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"pettrace/storage"
)

// Manager reads and writes RLP-encoded state records on top of a key-value
// store. Keys are hashed with keccak256 before they reach the store. Pointed
// at a storage.Overlay it stages the writes of a single transaction.
type Manager struct {
	kv storage.KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.kv.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.kv.Delete(kvKey(key))
}

// ChainID returns the chain id recorded at genesis, or zero when the store
// has not been initialised.
func (m *Manager) ChainID() (uint64, error) {
	var id uint64
	if _, err := m.KVGet(chainIDKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// SetChainID records the chain id.
func (m *Manager) SetChainID(id uint64) error {
	return m.KVPut(chainIDKey, id)
}

// Sequence returns the number of transactions applied so far.
func (m *Manager) Sequence() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(sequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// SetSequence records the applied transaction count.
func (m *Manager) SetSequence(seq uint64) error {
	return m.KVPut(sequenceKey, seq)
}

package receipts

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"pettrace/core/types"
)

var (
	bucketReceipts = []byte("receipts")
	bucketSequence = []byte("sequence")

	// ErrNotFound is returned when no receipt exists for a hash.
	ErrNotFound = errors.New("receipt not found")
)

// Store persists transaction receipts keyed by transaction hash, with a
// secondary index by application sequence.
type Store struct {
	db *bolt.DB
}

// Open initialises (and migrates) the BoltDB-backed store at path.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketReceipts, bucketSequence} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sequenceKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

// PutReceipt stores r, replacing any receipt with the same hash.
func (s *Store) PutReceipt(r *types.Receipt) error {
	if r == nil {
		return errors.New("receipts: nil receipt")
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketReceipts).Put(r.TxHash.Bytes(), raw); err != nil {
			return err
		}
		return tx.Bucket(bucketSequence).Put(sequenceKey(r.Sequence), r.TxHash.Bytes())
	})
}

// Receipt loads the receipt for hash.
func (s *Store) Receipt(hash common.Hash) (*types.Receipt, error) {
	var out types.Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get(hash.Bytes())
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Has reports whether a receipt exists for hash.
func (s *Store) Has(hash common.Hash) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketReceipts).Get(hash.Bytes()) != nil
		return nil
	})
	return found, err
}

// Recent returns up to limit receipts in descending sequence order.
func (s *Store) Recent(limit int) ([]*types.Receipt, error) {
	out := make([]*types.Receipt, 0)
	if limit <= 0 {
		return out, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		cursor := tx.Bucket(bucketSequence).Cursor()
		for k, hash := cursor.Last(); k != nil && len(out) < limit; k, hash = cursor.Prev() {
			raw := receipts.Get(hash)
			if raw == nil {
				continue
			}
			var r types.Receipt
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

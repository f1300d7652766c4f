// core/genesis/spec.go
package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"pettrace/crypto"
)

// GenesisSpec describes the initial state of a registry node.
type GenesisSpec struct {
	GenesisTime string               `yaml:"genesisTime"`
	ChainID     uint64               `yaml:"chainId"`
	Admin       string               `yaml:"admin"`
	Alloc       map[string]AllocSpec `yaml:"alloc"`

	genesisTimestamp time.Time
	adminAddr        common.Address
	allocations      []Allocation
}

// AllocSpec holds decimal amounts in the smallest unit.
type AllocSpec struct {
	Native string `yaml:"native"`
	CUSD   string `yaml:"cusd"`
}

// Allocation is a validated AllocSpec entry.
type Allocation struct {
	Address common.Address
	Native  *big.Int
	Stable  *big.Int
}

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown fields are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw YAML.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time  { return s.genesisTimestamp }
func (s *GenesisSpec) AdminAddress() common.Address { return s.adminAddr }

// Allocations returns the validated allocations sorted by address.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocations))
	copy(out, s.allocations)
	return out
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be greater than zero")
	}
	if strings.TrimSpace(s.Admin) == "" {
		return fmt.Errorf("admin must be provided")
	}
	admin, err := crypto.DecodeAddress(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if admin == (common.Address{}) {
		return fmt.Errorf("admin must not be the zero address")
	}
	s.adminAddr = admin

	seen := make(map[common.Address]string, len(s.Alloc))
	allocations := make([]Allocation, 0, len(s.Alloc))
	for raw, entry := range s.Alloc {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		if prev, dup := seen[addr]; dup {
			return fmt.Errorf("alloc %q: duplicates %q", raw, prev)
		}
		seen[addr] = raw
		native, err := parseAmountString(entry.Native)
		if err != nil {
			return fmt.Errorf("alloc %q native: %w", raw, err)
		}
		stable, err := parseAmountString(entry.CUSD)
		if err != nil {
			return fmt.Errorf("alloc %q cusd: %w", raw, err)
		}
		allocations = append(allocations, Allocation{Address: addr, Native: native, Stable: stable})
	}
	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].Address.Bytes(), allocations[j].Address.Bytes()) < 0
	})
	s.allocations = allocations
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

// parseAmountString parses a non-negative base-10 integer that fits in 256
// bits. Empty means zero.
func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return amount, nil
}

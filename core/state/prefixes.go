package state

import "encoding/binary"

var (
	chainIDKey  = []byte("node/chain-id")
	sequenceKey = []byte("node/sequence")

	accountPrefix = []byte("account/")

	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
	tokenSupplyPrefix    = []byte("token/supply/")

	bountyReportPrefix = []byte("pettrace/report/")
	bountyEscrowPrefix = []byte("pettrace/escrow/cusd/")
	bountyNextIDKey    = []byte("pettrace/next-id")
	bountyAdminKey     = []byte("pettrace/admin")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func uint64Key(prefix []byte, id uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return prefixed(prefix, raw[:])
}

// AccountKey is the unhashed state key of addr's account record.
func AccountKey(addr []byte) []byte { return prefixed(accountPrefix, addr) }

// BountyReportKey is the unhashed state key of a report.
func BountyReportKey(id uint64) []byte { return uint64Key(bountyReportPrefix, id) }

// BountyEscrowKey is the unhashed state key of a report's stablecoin escrow
// entry.
func BountyEscrowKey(id uint64) []byte { return uint64Key(bountyEscrowPrefix, id) }

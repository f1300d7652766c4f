package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FormatHash renders a non-zero hash as lowercase 0x hex.
func FormatHash(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return strings.ToLower(h.Hex())
}

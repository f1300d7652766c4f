package main

import (
	"fmt"
	"math/big"
	"strings"
)

const tokenDecimals = 18

// parseAmount converts a decimal token amount such as "1.25" into base
// units. A trailing "wei" suffix takes the integer as base units already.
func parseAmount(raw string) (*big.Int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if strings.HasSuffix(value, "wei") {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(strings.TrimSuffix(value, "wei")), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q", raw)
		}
		return amount, nil
	}
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (frac == "" || len(frac) > tokenDecimals) {
		return nil, fmt.Errorf("invalid amount %q: at most %d decimal places", raw, tokenDecimals)
	}
	digits := whole + frac + strings.Repeat("0", tokenDecimals-len(frac))
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok || amount.Sign() < 0 || strings.ContainsAny(digits, "+-") {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// formatAmount renders base units as a decimal token amount.
func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)
	whole, frac := new(big.Int).QuoRem(amount, unit, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", tokenDecimals-len(fracStr)) + fracStr
	return whole.String() + "." + strings.TrimRight(fracStr, "0")
}

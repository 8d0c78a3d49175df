package storage

import (
	"math/big"
	"strings"
)

// DefaultPrecision is the number of fractional digits shown by default.
const DefaultPrecision = 4

// FormatBalance renders a minor-unit amount as a decimal string with
// precision fractional digits, truncating the rest. Only integer arithmetic
// is used.
func FormatBalance(value *big.Int, decimals, precision int) string {
	if value == nil {
		value = new(big.Int)
	}
	if decimals <= 0 {
		return value.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, divisor, new(big.Int))

	digits := frac.String()
	if pad := decimals - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	if precision < len(digits) {
		digits = digits[:max(precision, 0)]
	}
	if digits == "" {
		return whole.String()
	}
	return whole.String() + "." + digits
}

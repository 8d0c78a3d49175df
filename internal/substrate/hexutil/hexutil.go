// Package hexutil converts between 0x-prefixed hex strings and bytes.
package hexutil

import (
	"encoding/hex"
	"strconv"
	"strings"

	"chainbal/internal/fault"
)

// Encode returns b as a lowercase 0x-prefixed string.
func Encode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Decode accepts hex with or without the 0x prefix.
func Decode(s string) ([]byte, error) {
	trimmed := trimPrefix(s)
	if len(trimmed)%2 != 0 {
		return nil, fault.Decodef("hex", "odd length %d", len(trimmed))
	}
	out, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &fault.DecodeError{What: "hex", Err: err}
	}
	return out, nil
}

// ParseUint parses a hex-encoded quantity such as a header number.
func ParseUint(value string) (uint64, error) {
	trimmed := trimPrefix(value)
	if trimmed == "" {
		return 0, fault.Decodef("hex quantity", "empty value")
	}
	n, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, &fault.DecodeError{What: "hex quantity", Err: err}
	}
	return n, nil
}

func FormatUint(value uint64) string {
	return "0x" + strconv.FormatUint(value, 16)
}

func trimPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

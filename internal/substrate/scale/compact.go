// Package scale implements the SCALE compact unsigned integer encoding.
//
// The two low bits of the first byte select the mode:
//
//	00  single byte, value in the upper six bits
//	01  two bytes little-endian, value >> 2
//	10  four bytes little-endian, value >> 2
//	11  big-integer mode: upper six bits hold (length - 4), followed by
//	    length little-endian magnitude bytes
package scale

import (
	"math/big"

	"chainbal/internal/fault"
)

const (
	modeSingle = 0b00
	modeTwo    = 0b01
	modeFour   = 0b10
	modeBig    = 0b11
)

var (
	maxSingle = big.NewInt(1<<6 - 1)
	maxTwo    = big.NewInt(1<<14 - 1)
	maxFour   = big.NewInt(1<<30 - 1)
)

// DecodeCompact reads a compact integer at offset and returns its value and
// the offset of the next byte.
func DecodeCompact(data []byte, offset int) (*big.Int, int, error) {
	if offset < 0 || offset >= len(data) {
		return nil, offset, fault.Decodef("compact", "offset %d out of range for %d bytes", offset, len(data))
	}
	first := data[offset]
	switch first & 0b11 {
	case modeSingle:
		return big.NewInt(int64(first >> 2)), offset + 1, nil
	case modeTwo:
		raw, err := littleEndian(data, offset, 2)
		if err != nil {
			return nil, offset, err
		}
		return raw.Rsh(raw, 2), offset + 2, nil
	case modeFour:
		raw, err := littleEndian(data, offset, 4)
		if err != nil {
			return nil, offset, err
		}
		return raw.Rsh(raw, 2), offset + 4, nil
	default:
		length := int(first>>2) + 4
		raw, err := littleEndian(data, offset+1, length)
		if err != nil {
			return nil, offset, err
		}
		return raw, offset + 1 + length, nil
	}
}

// EncodeCompact returns the shortest compact encoding of value.
func EncodeCompact(value *big.Int) ([]byte, error) {
	if value.Sign() < 0 {
		return nil, fault.Decodef("compact", "negative value %s", value)
	}
	switch {
	case value.Cmp(maxSingle) <= 0:
		return []byte{byte(value.Uint64() << 2)}, nil
	case value.Cmp(maxTwo) <= 0:
		v := value.Uint64()<<2 | modeTwo
		return []byte{byte(v), byte(v >> 8)}, nil
	case value.Cmp(maxFour) <= 0:
		v := value.Uint64()<<2 | modeFour
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}, nil
	}

	be := value.Bytes()
	length := len(be)
	if length < 4 {
		length = 4
	}
	if length-4 > 0b111111 {
		return nil, fault.Decodef("compact", "value needs %d bytes", length)
	}
	out := make([]byte, 1+length)
	out[0] = byte(length-4)<<2 | modeBig
	for i, b := range be {
		out[len(be)-i] = b
	}
	return out, nil
}

func littleEndian(data []byte, start, length int) (*big.Int, error) {
	end := start + length
	if end > len(data) {
		return nil, fault.Decodef("compact", "need %d bytes at offset %d, have %d", length, start, len(data)-start)
	}
	be := make([]byte, length)
	for i := 0; i < length; i++ {
		be[length-1-i] = data[start+i]
	}
	return new(big.Int).SetBytes(be), nil
}

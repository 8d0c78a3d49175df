// Package ss58 decodes SS58 account addresses into 32-byte public keys.
//
// The trailing checksum is not validated.
package ss58

import (
	"chainbal/internal/fault"
)

// PublicKeySize is the length of an account id.
const PublicKeySize = 32

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var decodeMap [256]int8

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = int8(i)
	}
}

// DecodeBase58 decodes s as a big-endian base-58 number, keeping one zero
// byte for every leading '1'.
func DecodeBase58(s string) ([]byte, error) {
	// little-endian accumulator
	acc := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		digit := decodeMap[s[i]]
		if digit < 0 {
			return nil, &fault.AddressError{Address: s, Reason: "invalid base58 character " + quoteByte(s[i])}
		}
		carry := int(digit)
		for j := range acc {
			carry += int(acc[j]) * 58
			acc[j] = byte(carry)
			carry >>= 8
		}
		for carry > 0 {
			acc = append(acc, byte(carry))
			carry >>= 8
		}
	}
	for i := 0; i < len(s) && s[i] == alphabet[0]; i++ {
		acc = append(acc, 0)
	}
	for i, j := 0, len(acc)-1; i < j; i, j = i+1, j-1 {
		acc[i], acc[j] = acc[j], acc[i]
	}
	return acc, nil
}

// Decode returns the public key carried by an SS58 address.
func Decode(address string) ([PublicKeySize]byte, error) {
	var key [PublicKeySize]byte
	raw, err := DecodeBase58(address)
	if err != nil {
		return key, err
	}
	if len(raw) == 0 {
		return key, &fault.AddressError{Address: address, Reason: "empty address"}
	}
	offset := prefixLength(raw[0])
	if len(raw) < offset+PublicKeySize {
		return key, &fault.AddressError{Address: address, Reason: "public key is not 32 bytes"}
	}
	copy(key[:], raw[offset:offset+PublicKeySize])
	return key, nil
}

// Prefix returns the network identifier encoded in the address.
func Prefix(address string) (uint16, error) {
	raw, err := DecodeBase58(address)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, &fault.AddressError{Address: address, Reason: "empty address"}
	}
	if prefixLength(raw[0]) == 1 {
		return uint16(raw[0]), nil
	}
	if len(raw) < 2 {
		return 0, &fault.AddressError{Address: address, Reason: "truncated network prefix"}
	}
	// two-byte form packs 14 bits across both bytes
	lower := (raw[0]<<2)&0xfc | raw[1]>>6
	upper := raw[1] & 0x3f
	return uint16(lower) | uint16(upper)<<8, nil
}

func prefixLength(first byte) int {
	if first >= 64 {
		return 2
	}
	return 1
}

func quoteByte(b byte) string {
	return "'" + string(rune(b)) + "'"
}

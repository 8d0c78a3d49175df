package storage

import (
	"math/big"

	"chainbal/internal/fault"
	"chainbal/internal/substrate/hexutil"
)

const (
	u128Size = 16

	// AccountInfo: nonce, consumers, providers, sufficients (u32 each),
	// then free, reserved, frozen, flags (u128 each).
	accountFreeOffset     = 16
	accountReservedOffset = 32
	AccountRecordSize     = 80

	assetBalanceOffset = 0
)

// AccountData is the part of the native ledger record we expose.
type AccountData struct {
	Free     *big.Int
	Reserved *big.Int
}

// AssetData is the part of the asset ledger record we expose.
type AssetData struct {
	Balance *big.Int
}

// RawValue turns a state_getStorage result into bytes. A nil value means the
// record was never created and is reported with ok=false.
func RawValue(value *string) (raw []byte, ok bool, err error) {
	if value == nil {
		return nil, false, nil
	}
	raw, err = hexutil.Decode(*value)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// DecodeAccount reads free and reserved from a native ledger record. A nil
// record decodes as zero.
func DecodeAccount(raw []byte) (AccountData, error) {
	if raw == nil {
		return AccountData{Free: new(big.Int), Reserved: new(big.Int)}, nil
	}
	free, err := readU128(raw, accountFreeOffset, "account record")
	if err != nil {
		return AccountData{}, err
	}
	reserved, err := readU128(raw, accountReservedOffset, "account record")
	if err != nil {
		return AccountData{}, err
	}
	return AccountData{Free: free, Reserved: reserved}, nil
}

// DecodeAssetAccount reads the balance from an asset ledger record. A nil
// record decodes as zero.
func DecodeAssetAccount(raw []byte) (AssetData, error) {
	if raw == nil {
		return AssetData{Balance: new(big.Int)}, nil
	}
	balance, err := readU128(raw, assetBalanceOffset, "asset account record")
	if err != nil {
		return AssetData{}, err
	}
	return AssetData{Balance: balance}, nil
}

func readU128(raw []byte, offset int, what string) (*big.Int, error) {
	if len(raw) < offset+u128Size {
		return nil, fault.Decodef(what, "need %d bytes, got %d", offset+u128Size, len(raw))
	}
	var be [u128Size]byte
	for i := 0; i < u128Size; i++ {
		be[u128Size-1-i] = raw[offset+i]
	}
	return new(big.Int).SetBytes(be[:]), nil
}

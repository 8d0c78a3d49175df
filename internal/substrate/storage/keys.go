// Package storage builds storage-map keys and decodes the balance records
// stored under them.
package storage

import (
	"encoding/binary"

	"chainbal/internal/substrate/blake2"
	"chainbal/internal/substrate/hexutil"
	"chainbal/internal/substrate/ss58"
)

// Prefix is twox128 of a pallet or item name. The values are fixed at build
// time and never recomputed.
type Prefix [16]byte

var (
	PalletSystem = Prefix{0x26, 0xaa, 0x39, 0x4e, 0xea, 0x56, 0x30, 0xe0, 0x7c, 0x48, 0xae, 0x0c, 0x95, 0x58, 0xce, 0xf7}
	PalletAssets = Prefix{0x68, 0x2a, 0x59, 0xd5, 0x1a, 0xb9, 0xe4, 0x8a, 0x8c, 0x8c, 0xc4, 0x18, 0xff, 0x97, 0x08, 0xd2}
	ItemAccount  = Prefix{0xb9, 0x9d, 0x88, 0x0e, 0xc6, 0x81, 0x79, 0x9c, 0x0c, 0xf3, 0x0e, 0x88, 0x86, 0x37, 0x1d, 0xa9}
)

// Map identifies one storage map by its pallet and item prefixes.
type Map struct {
	Pallet Prefix
	Item   Prefix
}

var (
	SystemAccount = Map{Pallet: PalletSystem, Item: ItemAccount}
	AssetsAccount = Map{Pallet: PalletAssets, Item: ItemAccount}
)

// Key is a raw storage key.
type Key []byte

func (k Key) Hex() string { return hexutil.Encode(k) }

// Key returns pallet ‖ item ‖ blake2_128_concat(component) for each
// component, in the order given.
func (m Map) Key(components ...[]byte) (Key, error) {
	size := 2 * len(Prefix{})
	for _, c := range components {
		size += blake2.Size + len(c)
	}
	key := make(Key, 0, size)
	key = append(key, m.Pallet[:]...)
	key = append(key, m.Item[:]...)
	for _, c := range components {
		sum, err := blake2.Sum128(c)
		if err != nil {
			return nil, err
		}
		key = append(key, sum[:]...)
		key = append(key, c...)
	}
	return key, nil
}

// AccountKey is the System.Account key for an account id.
func AccountKey(account [ss58.PublicKeySize]byte) (Key, error) {
	return SystemAccount.Key(account[:])
}

// AssetAccountKey is the Assets.Account key for (asset id, account id).
func AssetAccountKey(assetID uint32, account [ss58.PublicKeySize]byte) (Key, error) {
	var id [4]byte
	binary.LittleEndian.PutUint32(id[:], assetID)
	return AssetsAccount.Key(id[:], account[:])
}

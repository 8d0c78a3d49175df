package domain

import (
	"math/big"
	"time"
)

// TokenAmount is an exact minor-unit amount together with its display form.
type TokenAmount struct {
	Symbol   string   `json:"symbol"`
	Decimals int      `json:"decimals"`
	Amount   *big.Int `json:"amount"`
	Display  string   `json:"display"`
}

// NativeBalance is the native ledger entry of an account.
type NativeBalance struct {
	Free     TokenAmount `json:"free"`
	Reserved TokenAmount `json:"reserved"`
	Exists   bool        `json:"exists"`
}

// AssetBalance is one asset ledger entry of an account.
type AssetBalance struct {
	AssetID uint32      `json:"asset_id"`
	Balance TokenAmount `json:"balance"`
	Exists  bool        `json:"exists"`
}

// BalanceSnapshot is everything known about an account at one moment.
type BalanceSnapshot struct {
	Address    string        `json:"address"`
	PublicKey  string        `json:"public_key"`
	Native     NativeBalance `json:"native"`
	Asset      AssetBalance  `json:"asset"`
	Price      Price         `json:"price"`
	ObservedAt time.Time     `json:"observed_at"`
}

// SameBalances reports whether two snapshots carry identical amounts.
func (s BalanceSnapshot) SameBalances(other BalanceSnapshot) bool {
	return cmpAmount(s.Native.Free.Amount, other.Native.Free.Amount) &&
		cmpAmount(s.Native.Reserved.Amount, other.Native.Reserved.Amount) &&
		cmpAmount(s.Asset.Balance.Amount, other.Asset.Balance.Amount)
}

func cmpAmount(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// BalanceRecord is a stored observation of an account.
type BalanceRecord struct {
	Address      string    `json:"address"`
	Free         string    `json:"free"`
	Reserved     string    `json:"reserved"`
	AssetID      uint32    `json:"asset_id"`
	AssetBalance string    `json:"asset_balance"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Record flattens a snapshot to the amounts kept in history.
func (s BalanceSnapshot) Record() BalanceRecord {
	return BalanceRecord{
		Address:      s.Address,
		Free:         amountText(s.Native.Free.Amount),
		Reserved:     amountText(s.Native.Reserved.Amount),
		AssetID:      s.Asset.AssetID,
		AssetBalance: amountText(s.Asset.Balance.Amount),
		ObservedAt:   s.ObservedAt,
	}
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainbal/internal/domain"
	"chainbal/internal/substrate/digest"
	"chainbal/internal/substrate/hexutil"
	"chainbal/internal/substrate/ss58"
	"chainbal/internal/substrate/storage"
)

// ChainSource is the node access the queries need.
type ChainSource interface {
	HeadAndFinalized(ctx context.Context) (domain.Header, string, error)
	HeaderAt(ctx context.Context, hash string) (domain.Header, error)
	Storage(ctx context.Context, keys []string, at string) ([]*string, error)
}

// PriceSource never fails; an unreachable quote comes back unavailable.
type PriceSource interface {
	Lookup(ctx context.Context, symbol string) domain.Price
}

// SnapshotReader is what callers outside the core consume.
type SnapshotReader interface {
	ChainHead(ctx context.Context) (domain.ChainHead, error)
	Balances(ctx context.Context, address string) (domain.BalanceSnapshot, error)
}

type Token struct {
	Symbol   string
	Decimals int
}

type QuerierConfig struct {
	Native    Token
	Asset     Token
	AssetID   uint32
	Precision int
}

type Querier struct {
	source ChainSource
	prices PriceSource
	cfg    QuerierConfig
	now    func() time.Time
}

var _ SnapshotReader = (*Querier)(nil)

func NewQuerier(source ChainSource, prices PriceSource, cfg QuerierConfig) (*Querier, error) {
	if source == nil {
		return nil, errors.New("chain source is required")
	}
	if cfg.Precision < 0 {
		cfg.Precision = storage.DefaultPrecision
	}
	return &Querier{source: source, prices: prices, cfg: cfg, now: time.Now}, nil
}

// ChainHead reads the best header and finalized hash in one batch, then the
// finalized header, since the hash alone carries no block number.
func (q *Querier) ChainHead(ctx context.Context) (domain.ChainHead, error) {
	best, finalizedHash, err := q.source.HeadAndFinalized(ctx)
	if err != nil {
		return domain.ChainHead{}, fmt.Errorf("chain head: %w", err)
	}
	finalized, err := q.source.HeaderAt(ctx, finalizedHash)
	if err != nil {
		return domain.ChainHead{}, fmt.Errorf("finalized header: %w", err)
	}
	bestNumber, err := hexutil.ParseUint(best.Number)
	if err != nil {
		return domain.ChainHead{}, fmt.Errorf("best block number: %w", err)
	}
	finalizedNumber, err := hexutil.ParseUint(finalized.Number)
	if err != nil {
		return domain.ChainHead{}, fmt.Errorf("finalized block number: %w", err)
	}
	bestDigest, err := digestItems(best.Digest.Logs)
	if err != nil {
		return domain.ChainHead{}, fmt.Errorf("best block digest: %w", err)
	}
	return domain.ChainHead{
		Best:            best,
		BestNumber:      bestNumber,
		BestDigest:      bestDigest,
		FinalizedHash:   finalizedHash,
		FinalizedNumber: finalizedNumber,
		ObservedAt:      q.now().UTC(),
	}, nil
}

func digestItems(logs []string) ([]domain.DigestItem, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	items, err := digest.DecodeAll(logs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DigestItem, len(items))
	for i, item := range items {
		out[i] = domain.DigestItem{Kind: string(item.Kind), Engine: item.Engine}
		if len(item.Payload) > 0 {
			out[i].Payload = hexutil.Encode(item.Payload)
		}
	}
	return out, nil
}

// AccountKeys are the storage keys read for one account.
type AccountKeys struct {
	PublicKey    [ss58.PublicKeySize]byte
	Native       storage.Key
	AssetAccount storage.Key
}

func (q *Querier) StorageKeys(address string) (AccountKeys, error) {
	publicKey, err := ss58.Decode(address)
	if err != nil {
		return AccountKeys{}, err
	}
	native, err := storage.AccountKey(publicKey)
	if err != nil {
		return AccountKeys{}, err
	}
	asset, err := storage.AssetAccountKey(q.cfg.AssetID, publicKey)
	if err != nil {
		return AccountKeys{}, err
	}
	return AccountKeys{PublicKey: publicKey, Native: native, AssetAccount: asset}, nil
}

// Balances fetches both ledger records in one batch. Records that do not
// exist yet decode as zero.
func (q *Querier) Balances(ctx context.Context, address string) (domain.BalanceSnapshot, error) {
	keys, err := q.StorageKeys(address)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	values, err := q.source.Storage(ctx, []string{keys.Native.Hex(), keys.AssetAccount.Hex()}, "")
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("read balances: %w", err)
	}
	if len(values) != 2 {
		return domain.BalanceSnapshot{}, fmt.Errorf("read balances: expected 2 values, got %d", len(values))
	}

	nativeRaw, nativeExists, err := storage.RawValue(values[0])
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("native record: %w", err)
	}
	account, err := storage.DecodeAccount(nativeRaw)
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("native record: %w", err)
	}
	assetRaw, assetExists, err := storage.RawValue(values[1])
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("asset record: %w", err)
	}
	asset, err := storage.DecodeAssetAccount(assetRaw)
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("asset record: %w", err)
	}

	price := domain.PriceUnavailable(q.cfg.Native.Symbol)
	if q.prices != nil {
		price = q.prices.Lookup(ctx, q.cfg.Native.Symbol)
	}

	return domain.BalanceSnapshot{
		Address:   address,
		PublicKey: hexutil.Encode(keys.PublicKey[:]),
		Native: domain.NativeBalance{
			Free:     q.amount(q.cfg.Native, account.Free),
			Reserved: q.amount(q.cfg.Native, account.Reserved),
			Exists:   nativeExists,
		},
		Asset: domain.AssetBalance{
			AssetID: q.cfg.AssetID,
			Balance: q.amount(q.cfg.Asset, asset.Balance),
			Exists:  assetExists,
		},
		Price:      price,
		ObservedAt: q.now().UTC(),
	}, nil
}

func (q *Querier) amount(token Token, value *big.Int) domain.TokenAmount {
	return domain.TokenAmount{
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
		Amount:   value,
		Display:  storage.FormatBalance(value, token.Decimals, q.cfg.Precision),
	}
}

package rediscache

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	"chainbal/internal/domain"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	down   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) *redis.StringCmd {
	if m.down {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	value, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if m.down {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryStore) Incr(_ context.Context, key string) *redis.IntCmd {
	n, _ := strconv.ParseInt(m.values[key], 10, 64)
	n++
	m.values[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

type countingReader struct {
	heads    int
	balances int
	free     int64
	err      error
}

func (r *countingReader) ChainHead(context.Context) (domain.ChainHead, error) {
	r.heads++
	if r.err != nil {
		return domain.ChainHead{}, r.err
	}
	return domain.ChainHead{BestNumber: uint64(100 + r.heads), FinalizedHash: "0xf"}, nil
}

func (r *countingReader) Balances(_ context.Context, address string) (domain.BalanceSnapshot, error) {
	r.balances++
	if r.err != nil {
		return domain.BalanceSnapshot{}, r.err
	}
	return domain.BalanceSnapshot{
		Address: address,
		Native:  domain.NativeBalance{Free: domain.TokenAmount{Amount: big.NewInt(r.free)}},
	}, nil
}

type hitCounter struct{ hits, misses int }

func (h *hitCounter) ObserveCache(_ string, hit bool) {
	if hit {
		h.hits++
	} else {
		h.misses++
	}
}

func TestChainHeadReadThrough(t *testing.T) {
	base := &countingReader{}
	store := newMemoryStore()
	observer := &hitCounter{}
	cached := newCachedQuerier(base, store, Config{Observer: observer})

	first, err := cached.ChainHead(context.Background())
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	second, err := cached.ChainHead(context.Background())
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if base.heads != 1 || first.BestNumber != second.BestNumber {
		t.Errorf("expected one upstream call, got %d (%d vs %d)", base.heads, first.BestNumber, second.BestNumber)
	}
	if store.ttls[headKey] != DefaultTTL {
		t.Errorf("ttl = %v, want %v", store.ttls[headKey], DefaultTTL)
	}
	if observer.hits != 1 || observer.misses != 1 {
		t.Errorf("hits/misses = %d/%d", observer.hits, observer.misses)
	}
}

func TestBalancesInvalidate(t *testing.T) {
	base := &countingReader{free: 7}
	cached := newCachedQuerier(base, newMemoryStore(), Config{TTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		snapshot, err := cached.Balances(ctx, "addr")
		if err != nil {
			t.Fatalf("balances: %v", err)
		}
		if snapshot.Native.Free.Amount.Int64() != 7 {
			t.Errorf("free = %s", snapshot.Native.Free.Amount)
		}
	}
	if base.balances != 1 {
		t.Fatalf("expected cached second read, got %d upstream calls", base.balances)
	}

	base.free = 9
	cached.Invalidate(ctx)
	snapshot, err := cached.Balances(ctx, "addr")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if base.balances != 2 || snapshot.Native.Free.Amount.Int64() != 9 {
		t.Errorf("invalidate did not force a fresh read: calls=%d free=%s", base.balances, snapshot.Native.Free.Amount)
	}
}

func TestPassThrough(t *testing.T) {
	base := &countingReader{}
	store := newMemoryStore()
	store.down = true
	cached := newCachedQuerier(base, store, Config{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cached.Balances(ctx, "addr"); err != nil {
			t.Fatalf("balances: %v", err)
		}
		if _, err := cached.ChainHead(ctx); err != nil {
			t.Fatalf("head: %v", err)
		}
	}
	if base.balances != 2 || base.heads != 2 {
		t.Errorf("redis outage must fall back to base, got %d/%d", base.balances, base.heads)
	}

	store.down = false
	if _, err := cached.Balances(ctx, "  "); err != nil {
		t.Fatalf("empty address: %v", err)
	}
	if len(store.values) != 0 {
		t.Errorf("empty address must not be cached: %v", store.values)
	}
}

func TestErrorsNotCached(t *testing.T) {
	base := &countingReader{err: errors.New("node down")}
	store := newMemoryStore()
	cached := newCachedQuerier(base, store, Config{})
	if _, err := cached.ChainHead(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.values[headKey]; ok {
		t.Errorf("failed reads must not be cached")
	}
}

func TestNewWithoutAddr(t *testing.T) {
	base := &countingReader{}
	cached, err := New(base, Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := cached.ChainHead(context.Background()); err != nil {
		t.Fatalf("head: %v", err)
	}
	if err := cached.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("expected error for nil base")
	}
}

package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	headKey            = "chainbal:head"
	balanceVersionKey  = "chainbal:balances:version"
	balanceKeyPrefix   = "chainbal:balances:v"
	DefaultTTL         = 6 * time.Second
	defaultDialTimeout = 2 * time.Second
)

// store is the subset of redis commands the cache issues.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

type CacheObserver interface {
	ObserveCache(kind string, hit bool)
}

type Config struct {
	Addr     string
	TTL      time.Duration
	Observer CacheObserver
}

// CachedQuerier is a read-through cache of head and balance snapshots. Redis
// failures are never surfaced; the wrapped reader answers instead.
type CachedQuerier struct {
	base     application.SnapshotReader
	cache    store
	client   *redis.Client
	ttl      time.Duration
	observer CacheObserver
}

var _ application.SnapshotReader = (*CachedQuerier)(nil)

func New(base application.SnapshotReader, cfg Config) (*CachedQuerier, error) {
	if base == nil {
		return nil, errors.New("base reader is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedQuerier{base: base}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	cached := newCachedQuerier(base, client, cfg)
	cached.client = client
	return cached, nil
}

func newCachedQuerier(base application.SnapshotReader, cache store, cfg Config) *CachedQuerier {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &CachedQuerier{base: base, cache: cache, ttl: cfg.TTL, observer: cfg.Observer}
}

func (c *CachedQuerier) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *CachedQuerier) ChainHead(ctx context.Context) (domain.ChainHead, error) {
	if c.cache == nil {
		return c.base.ChainHead(ctx)
	}
	var head domain.ChainHead
	if c.load(ctx, "head", headKey, &head) {
		return head, nil
	}
	head, err := c.base.ChainHead(ctx)
	if err != nil {
		return domain.ChainHead{}, err
	}
	c.save(ctx, headKey, head)
	return head, nil
}

func (c *CachedQuerier) Balances(ctx context.Context, address string) (domain.BalanceSnapshot, error) {
	address = strings.TrimSpace(address)
	if c.cache == nil || address == "" {
		return c.base.Balances(ctx, address)
	}
	version, ok := c.version(ctx)
	if !ok {
		return c.base.Balances(ctx, address)
	}
	key := balanceKeyPrefix + version + ":" + address

	var snapshot domain.BalanceSnapshot
	if c.load(ctx, "balance", key, &snapshot) {
		return snapshot, nil
	}
	snapshot, err := c.base.Balances(ctx, address)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	c.save(ctx, key, snapshot)
	return snapshot, nil
}

// Invalidate drops every cached balance snapshot by moving to a new key
// version. Old keys expire on their own.
func (c *CachedQuerier) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Incr(ctx, balanceVersionKey).Err()
}

func (c *CachedQuerier) load(ctx context.Context, kind, key string, dest any) bool {
	cached, err := c.cache.Get(ctx, key).Result()
	hit := err == nil && json.Unmarshal([]byte(cached), dest) == nil
	if c.observer != nil {
		c.observer.ObserveCache(kind, hit)
	}
	return hit
}

func (c *CachedQuerier) save(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, key, payload, c.ttl).Err()
}

func (c *CachedQuerier) version(ctx context.Context) (string, bool) {
	version, err := c.cache.Get(ctx, balanceVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

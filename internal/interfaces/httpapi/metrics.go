package httpapi

import (
	"maps"
	"sync"
	"time"

	"chainbal/internal/domain"
	"chainbal/internal/fault"
)

// Metrics collects counters from the RPC client, the cache, the watcher and
// the handlers. All methods are safe for concurrent use.
type Metrics struct {
	mu               sync.RWMutex
	startTime        time.Time
	bestBlock        uint64
	finalizedBlock   uint64
	lastPoll         time.Time
	lastPollChanged  int
	lastPollFailed   int
	rpcCalls         map[string]uint64
	rpcSeconds       map[string]float64
	rpcErrors        map[string]uint64
	cacheHits        map[string]uint64
	cacheMisses      map[string]uint64
	priceUnavailable uint64
	rateLimited      uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		rpcCalls:    make(map[string]uint64),
		rpcSeconds:  make(map[string]float64),
		rpcErrors:   make(map[string]uint64),
		cacheHits:   make(map[string]uint64),
		cacheMisses: make(map[string]uint64),
	}
}

func (m *Metrics) ObserveRPC(method string, calls int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpcCalls[method] += uint64(calls)
	m.rpcSeconds[method] += duration.Seconds()
	if err != nil {
		m.rpcErrors[fault.Kind(err)]++
	}
}

func (m *Metrics) ObserveCache(kind string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits[kind]++
	} else {
		m.cacheMisses[kind]++
	}
}

func (m *Metrics) ObservePrice(available bool) {
	if available {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceUnavailable++
}

func (m *Metrics) IncRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func (m *Metrics) OnHead(head domain.ChainHead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bestBlock = head.BestNumber
	m.finalizedBlock = head.FinalizedNumber
}

func (m *Metrics) OnPoll(_, changed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPoll = time.Now()
	m.lastPollChanged = changed
	m.lastPollFailed = failed
}

type Snapshot struct {
	StartTime        time.Time
	BestBlock        uint64
	FinalizedBlock   uint64
	LastPoll         time.Time
	LastPollChanged  int
	LastPollFailed   int
	RPCCalls         map[string]uint64
	RPCSeconds       map[string]float64
	RPCErrors        map[string]uint64
	CacheHits        map[string]uint64
	CacheMisses      map[string]uint64
	PriceUnavailable uint64
	RateLimited      uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:        m.startTime,
		BestBlock:        m.bestBlock,
		FinalizedBlock:   m.finalizedBlock,
		LastPoll:         m.lastPoll,
		LastPollChanged:  m.lastPollChanged,
		LastPollFailed:   m.lastPollFailed,
		RPCCalls:         maps.Clone(m.rpcCalls),
		RPCSeconds:       maps.Clone(m.rpcSeconds),
		RPCErrors:        maps.Clone(m.rpcErrors),
		CacheHits:        maps.Clone(m.cacheHits),
		CacheMisses:      maps.Clone(m.cacheMisses),
		PriceUnavailable: m.priceUnavailable,
		RateLimited:      m.rateLimited,
	}
}

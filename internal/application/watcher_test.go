package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"chainbal/internal/domain"
)

type scriptedReader struct {
	mu      sync.Mutex
	free    map[string]int64
	failing map[string]bool
	headErr error
	heads   int
}

func (r *scriptedReader) ChainHead(context.Context) (domain.ChainHead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headErr != nil {
		return domain.ChainHead{}, r.headErr
	}
	r.heads++
	return domain.ChainHead{BestNumber: uint64(r.heads), FinalizedHash: "0xf"}, nil
}

func (r *scriptedReader) Balances(_ context.Context, address string) (domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing[address] {
		return domain.BalanceSnapshot{}, errors.New("node unavailable")
	}
	return domain.BalanceSnapshot{
		Address: address,
		Native:  domain.NativeBalance{Free: domain.TokenAmount{Amount: big.NewInt(r.free[address])}},
	}, nil
}

func (r *scriptedReader) set(address string, free int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.free[address] = free
}

type memoryHistory struct {
	heads    []domain.ChainHead
	balances []domain.BalanceSnapshot
}

func (h *memoryHistory) StoreHead(_ context.Context, head domain.ChainHead) error {
	h.heads = append(h.heads, head)
	return nil
}

func (h *memoryHistory) StoreBalance(_ context.Context, snapshot domain.BalanceSnapshot) error {
	h.balances = append(h.balances, snapshot)
	return nil
}

func (h *memoryHistory) BalanceHistory(context.Context, string, int) ([]domain.BalanceRecord, error) {
	return nil, nil
}

func (h *memoryHistory) LatestHead(context.Context) (domain.ChainHead, bool, error) {
	return domain.ChainHead{}, false, nil
}

func (h *memoryHistory) Ping(context.Context) error { return nil }

type recordingStream struct {
	heads     int
	published [][]domain.BalanceSnapshot
	err       error
}

func (s *recordingStream) PublishHead(context.Context, domain.ChainHead) error {
	s.heads++
	return nil
}

func (s *recordingStream) PublishBalances(_ context.Context, snapshots []domain.BalanceSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, snapshots)
	return nil
}

type invalidationCounter struct{ calls int }

func (c *invalidationCounter) Invalidate(context.Context) { c.calls++ }

type pollCounter struct {
	lastHead               uint64
	watched, changed, fail int
}

func (p *pollCounter) OnHead(head domain.ChainHead) { p.lastHead = head.BestNumber }
func (p *pollCounter) OnPoll(watched, changed, failed int) {
	p.watched, p.changed, p.fail = watched, changed, failed
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherPublishesOnlyChanges(t *testing.T) {
	reader := &scriptedReader{free: map[string]int64{"alice": 1, "bob": 2}}
	history := &memoryHistory{}
	stream := &recordingStream{}
	cache := &invalidationCounter{}
	observer := &pollCounter{}
	watcher, err := NewWatcher(reader, WatcherDeps{
		History:  history,
		Writer:   stream,
		Cache:    cache,
		Observer: observer,
		Logger:   quietLogger(),
	}, WatcherConfig{Addresses: []string{"alice", "bob"}, Workers: 2})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx := context.Background()

	if err := watcher.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(stream.published) != 1 || len(stream.published[0]) != 2 {
		t.Fatalf("first poll must publish both accounts, got %v", stream.published)
	}

	if err := watcher.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(stream.published) != 1 {
		t.Fatalf("unchanged balances must not be published again")
	}

	reader.set("bob", 5)
	if err := watcher.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(stream.published) != 2 || stream.published[1][0].Address != "bob" || len(stream.published[1]) != 1 {
		t.Fatalf("expected only bob published, got %v", stream.published)
	}

	if stream.heads != 3 || len(history.heads) != 3 {
		t.Errorf("head must be recorded every poll: stream=%d history=%d", stream.heads, len(history.heads))
	}
	if len(history.balances) != 3 {
		t.Errorf("history balances = %d, want 3", len(history.balances))
	}
	if cache.calls != 2 {
		t.Errorf("cache invalidations = %d, want 2", cache.calls)
	}
	if observer.lastHead != 3 || observer.watched != 2 || observer.changed != 1 {
		t.Errorf("observer = %+v", observer)
	}
}

func TestWatcherSkipsFailingAccount(t *testing.T) {
	reader := &scriptedReader{
		free:    map[string]int64{"alice": 1},
		failing: map[string]bool{"bob": true},
	}
	stream := &recordingStream{}
	observer := &pollCounter{}
	watcher, err := NewWatcher(reader, WatcherDeps{Writer: stream, Observer: observer, Logger: quietLogger()},
		WatcherConfig{Addresses: []string{"alice", "bob"}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if observer.fail != 1 || observer.changed != 1 {
		t.Errorf("observer = %+v", observer)
	}
	if len(stream.published) != 1 || stream.published[0][0].Address != "alice" {
		t.Errorf("published = %v", stream.published)
	}
}

func TestWatcherRetriesFailedPublish(t *testing.T) {
	reader := &scriptedReader{free: map[string]int64{"alice": 1}}
	stream := &recordingStream{err: errors.New("broker down")}
	watcher, err := NewWatcher(reader, WatcherDeps{Writer: stream, Logger: quietLogger()},
		WatcherConfig{Addresses: []string{"alice"}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Poll(context.Background()); err == nil {
		t.Fatalf("expected publish error")
	}
	stream.err = nil
	if err := watcher.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(stream.published) != 1 {
		t.Errorf("snapshot must be published after the failure, got %v", stream.published)
	}
}

func TestWatcherHeadError(t *testing.T) {
	reader := &scriptedReader{headErr: errors.New("timeout")}
	watcher, err := NewWatcher(reader, WatcherDeps{Logger: quietLogger()}, WatcherConfig{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Poll(context.Background()); err == nil {
		t.Fatalf("expected head error")
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	reader := &scriptedReader{free: map[string]int64{}}
	watcher, err := NewWatcher(reader, WatcherDeps{Logger: quietLogger()},
		WatcherConfig{PollInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := watcher.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run returned %v", err)
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.heads < 2 {
		t.Errorf("expected repeated polls, got %d", reader.heads)
	}
}

func TestNewWatcherRequiresReader(t *testing.T) {
	if _, err := NewWatcher(nil, WatcherDeps{}, WatcherConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

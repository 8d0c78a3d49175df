package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainbal/internal/domain"

	"golang.org/x/sync/errgroup"
)

type StreamWriter interface {
	PublishHead(ctx context.Context, head domain.ChainHead) error
	PublishBalances(ctx context.Context, snapshots []domain.BalanceSnapshot) error
}

// CacheInvalidator drops cached balance snapshots once newer ones are known.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type WatcherObserver interface {
	OnHead(head domain.ChainHead)
	OnPoll(watched, changed, failed int)
}

type WatcherConfig struct {
	Addresses    []string
	PollInterval time.Duration
	Workers      int
}

// Watcher polls the chain head and a fixed set of accounts. History and the
// stream are optional; a nil one is skipped.
type Watcher struct {
	reader   SnapshotReader
	history  HistoryStore
	writer   StreamWriter
	cache    CacheInvalidator
	observer WatcherObserver
	cfg      WatcherConfig
	logger   *slog.Logger
	last     map[string]domain.BalanceSnapshot
}

type WatcherDeps struct {
	History  HistoryStore
	Writer   StreamWriter
	Cache    CacheInvalidator
	Observer WatcherObserver
	Logger   *slog.Logger
}

func NewWatcher(reader SnapshotReader, deps WatcherDeps, cfg WatcherConfig) (*Watcher, error) {
	if reader == nil {
		return nil, errors.New("snapshot reader is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		reader:   reader,
		history:  deps.History,
		writer:   deps.Writer,
		cache:    deps.Cache,
		observer: deps.Observer,
		cfg:      cfg,
		logger:   logger,
		last:     make(map[string]domain.BalanceSnapshot, len(cfg.Addresses)),
	}, nil
}

// Run polls until ctx is done. A failed poll is logged and retried on the
// next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs one observation round. It is not safe for concurrent use.
func (w *Watcher) Poll(ctx context.Context) error {
	head, err := w.reader.ChainHead(ctx)
	if err != nil {
		return err
	}
	if w.observer != nil {
		w.observer.OnHead(head)
	}
	if w.history != nil {
		if err := w.history.StoreHead(ctx, head); err != nil {
			return err
		}
	}
	if w.writer != nil {
		if err := w.writer.PublishHead(ctx, head); err != nil {
			return err
		}
	}

	snapshots, failed := w.fetchBalances(ctx)
	changed := make([]domain.BalanceSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		previous, seen := w.last[snapshot.Address]
		if seen && previous.SameBalances(snapshot) {
			continue
		}
		changed = append(changed, snapshot)
	}

	for _, snapshot := range changed {
		if w.history != nil {
			if err := w.history.StoreBalance(ctx, snapshot); err != nil {
				return err
			}
		}
	}
	if len(changed) > 0 {
		if w.cache != nil {
			w.cache.Invalidate(ctx)
		}
		if w.writer != nil {
			if err := w.writer.PublishBalances(ctx, changed); err != nil {
				return err
			}
		}
	}
	// only remember what was recorded, so a failed write is retried
	for _, snapshot := range changed {
		w.last[snapshot.Address] = snapshot
	}

	if w.observer != nil {
		w.observer.OnPoll(len(w.cfg.Addresses), len(changed), failed)
	}
	w.logger.Debug("poll complete",
		"best", head.BestNumber,
		"finalized", head.FinalizedNumber,
		"changed", len(changed),
		"failed", failed,
	)
	return nil
}

// fetchBalances queries every address concurrently. One failing account
// does not hold back the others.
func (w *Watcher) fetchBalances(ctx context.Context) ([]domain.BalanceSnapshot, int) {
	results := make([]*domain.BalanceSnapshot, len(w.cfg.Addresses))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.cfg.Workers)
	for i, address := range w.cfg.Addresses {
		group.Go(func() error {
			snapshot, err := w.reader.Balances(groupCtx, address)
			if err != nil {
				w.logger.Warn("balance query failed", "address", address, "err", err)
				return nil
			}
			results[i] = &snapshot
			return nil
		})
	}
	_ = group.Wait()

	snapshots := make([]domain.BalanceSnapshot, 0, len(results))
	failed := 0
	for _, result := range results {
		if result == nil {
			failed++
			continue
		}
		snapshots = append(snapshots, *result)
	}
	return snapshots, failed
}

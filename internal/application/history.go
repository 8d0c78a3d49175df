package application

import (
	"context"

	"chainbal/internal/domain"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// HistoryStore keeps every observation the watcher makes.
type HistoryStore interface {
	StoreHead(ctx context.Context, head domain.ChainHead) error
	StoreBalance(ctx context.Context, snapshot domain.BalanceSnapshot) error
	BalanceHistory(ctx context.Context, address string, limit int) ([]domain.BalanceRecord, error)
	LatestHead(ctx context.Context) (domain.ChainHead, bool, error)
	Ping(ctx context.Context) error
}

// NormalizeHistoryLimit clamps a requested page size.
func NormalizeHistoryLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}

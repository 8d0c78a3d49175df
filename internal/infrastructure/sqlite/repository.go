package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/domain"
	"chainbal/internal/substrate/hexutil"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ application.HistoryStore = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; a single connection keeps them queued.
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS heads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			best_number INTEGER NOT NULL,
			parent_hash TEXT NOT NULL,
			finalized_number INTEGER NOT NULL,
			finalized_hash TEXT NOT NULL,
			observed_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			free TEXT NOT NULL,
			reserved TEXT NOT NULL,
			asset_id INTEGER NOT NULL,
			asset_balance TEXT NOT NULL,
			observed_at INTEGER NOT NULL,
			UNIQUE(address, observed_at)
		)`,
		`CREATE INDEX IF NOT EXISTS balances_address_idx ON balances (address, observed_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) StoreHead(ctx context.Context, head domain.ChainHead) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO heads (best_number, parent_hash, finalized_number, finalized_hash, observed_at)
		VALUES (?, ?, ?, ?, ?)`,
		int64(head.BestNumber), head.Best.ParentHash, int64(head.FinalizedNumber), head.FinalizedHash, head.ObservedAt.UnixMilli())
	return err
}

func (r *Repository) StoreBalance(ctx context.Context, snapshot domain.BalanceSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	record := snapshot.Record()
	_, err := r.db.ExecContext(ctx, `INSERT INTO balances (address, free, reserved, asset_id, asset_balance, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address, observed_at) DO NOTHING`,
		record.Address, record.Free, record.Reserved, record.AssetID, record.AssetBalance, record.ObservedAt.UnixMilli())
	return err
}

// BalanceHistory returns the newest observations first.
func (r *Repository) BalanceHistory(ctx context.Context, address string, limit int) ([]domain.BalanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT address, free, reserved, asset_id, asset_balance, observed_at
		FROM balances WHERE address = ? ORDER BY observed_at DESC LIMIT ?`,
		address, application.NormalizeHistoryLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.BalanceRecord
	for rows.Next() {
		var record domain.BalanceRecord
		var observed int64
		if err := rows.Scan(&record.Address, &record.Free, &record.Reserved, &record.AssetID, &record.AssetBalance, &observed); err != nil {
			return nil, err
		}
		record.ObservedAt = time.UnixMilli(observed).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) LatestHead(ctx context.Context) (domain.ChainHead, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var head domain.ChainHead
	var best, finalized, observed int64
	err := r.db.QueryRowContext(ctx, `SELECT best_number, parent_hash, finalized_number, finalized_hash, observed_at
		FROM heads ORDER BY id DESC LIMIT 1`).Scan(&best, &head.Best.ParentHash, &finalized, &head.FinalizedHash, &observed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ChainHead{}, false, nil
		}
		return domain.ChainHead{}, false, err
	}
	head.BestNumber = uint64(best)
	head.Best.Number = hexutil.FormatUint(head.BestNumber)
	head.FinalizedNumber = uint64(finalized)
	head.ObservedAt = time.UnixMilli(observed).UTC()
	return head, true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

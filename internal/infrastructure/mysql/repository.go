package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/domain"
	"chainbal/internal/substrate/hexutil"

	driver "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

var _ application.HistoryStore = (*Repository)(nil)

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// normalizeDSN forces DATETIME columns to scan as UTC time.Time values.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Amounts are u128 values; DECIMAL(39,0) holds all of them.
func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS heads (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			best_number BIGINT UNSIGNED NOT NULL,
			parent_hash VARCHAR(66) NOT NULL,
			finalized_number BIGINT UNSIGNED NOT NULL,
			finalized_hash VARCHAR(66) NOT NULL,
			observed_at DATETIME(3) NOT NULL,
			PRIMARY KEY (id)
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			address VARCHAR(64) NOT NULL,
			free DECIMAL(39,0) NOT NULL,
			reserved DECIMAL(39,0) NOT NULL,
			asset_id INT UNSIGNED NOT NULL,
			asset_balance DECIMAL(39,0) NOT NULL,
			observed_at DATETIME(3) NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY balances_unique (address, observed_at)
		)`,
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
	ctx, span := startDBSpan(ctx, "mysql.StoreHead", attribute.Int64("block.best", int64(head.BestNumber)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO heads (best_number, parent_hash, finalized_number, finalized_hash, observed_at)
		VALUES (?, ?, ?, ?, ?)`,
		head.BestNumber, head.Best.ParentHash, head.FinalizedNumber, head.FinalizedHash, head.ObservedAt.UTC())
	return recordSpanError(span, err)
}

func (r *Repository) StoreBalance(ctx context.Context, snapshot domain.BalanceSnapshot) error {
	ctx, span := startDBSpan(ctx, "mysql.StoreBalance", attribute.String("account.address", snapshot.Address))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	record := snapshot.Record()
	_, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO balances (address, free, reserved, asset_id, asset_balance, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.Address, record.Free, record.Reserved, record.AssetID, record.AssetBalance, record.ObservedAt.UTC())
	return recordSpanError(span, err)
}

func (r *Repository) BalanceHistory(ctx context.Context, address string, limit int) ([]domain.BalanceRecord, error) {
	ctx, span := startDBSpan(ctx, "mysql.BalanceHistory", attribute.String("account.address", address))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT address, CAST(free AS CHAR), CAST(reserved AS CHAR), asset_id, CAST(asset_balance AS CHAR), observed_at
		FROM balances WHERE address = ? ORDER BY observed_at DESC LIMIT ?`,
		address, application.NormalizeHistoryLimit(limit))
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	defer rows.Close()

	var records []domain.BalanceRecord
	for rows.Next() {
		var record domain.BalanceRecord
		if err := rows.Scan(&record.Address, &record.Free, &record.Reserved, &record.AssetID, &record.AssetBalance, &record.ObservedAt); err != nil {
			return nil, recordSpanError(span, err)
		}
		record.ObservedAt = record.ObservedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, recordSpanError(span, err)
	}
	return records, nil
}

func (r *Repository) LatestHead(ctx context.Context) (domain.ChainHead, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var head domain.ChainHead
	err := r.db.QueryRowContext(ctx, `SELECT best_number, parent_hash, finalized_number, finalized_hash, observed_at
		FROM heads ORDER BY id DESC LIMIT 1`).Scan(&head.BestNumber, &head.Best.ParentHash, &head.FinalizedNumber, &head.FinalizedHash, &head.ObservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ChainHead{}, false, nil
		}
		return domain.ChainHead{}, false, err
	}
	head.Best.Number = hexutil.FormatUint(head.BestNumber)
	head.ObservedAt = head.ObservedAt.UTC()
	return head, true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("chainbal/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

package history

import (
	"context"
	"fmt"
	"strings"

	"chainbal/internal/application"
	"chainbal/internal/infrastructure/mysql"
	"chainbal/internal/infrastructure/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store is a history backend that owns a database handle.
type Store interface {
	application.HistoryStore
	Close() error
}

// Open selects the backend by driver name.
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		repo, err := sqlite.NewRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverMySQL:
		repo, err := mysql.NewRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
}

// Ping reports the first unhealthy store.
func Ping(ctx context.Context, stores ...application.HistoryStore) error {
	for _, store := range stores {
		if store == nil {
			continue
		}
		if err := store.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

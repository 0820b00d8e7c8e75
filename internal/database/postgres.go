package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/finedge/corebank/internal/config"
)

// InitPostgres opens the ledger database and configures the connection pool
// from the recognised options. When validate-on-acquire is set the pool is
// probed before first use.
func InitPostgres(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUser,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.PoolMaxConnections)
	db.SetMaxIdleConns(cfg.PoolMaxConnections / 5)
	db.SetConnMaxLifetime(cfg.PoolConnMaxLifetime)

	if cfg.PoolValidateOnAcquire {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
	}

	return db, nil
}

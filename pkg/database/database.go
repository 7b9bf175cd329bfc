package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/pkg/config"
)

// Driver names accepted by Connect.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB wraps an sqlx handle together with the active driver so callers can
// branch on dialect-specific behaviour (DDL only; query text is portable).
type DB struct {
	*sqlx.DB
	Driver string
}

// Connect opens the configured backend. A PostgreSQL connection failure is
// not fatal: the adapter falls back to SQLite with a logged warning so the
// service stays available on a single-node setup.
func Connect(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Driver == DriverSQLite {
		return openSQLite(cfg)
	}

	db, err := openPostgres(cfg)
	if err != nil {
		logger.Warn("postgres unavailable, falling back to sqlite",
			zap.String("host", cfg.Host),
			zap.String("sqlite_path", cfg.SQLitePath),
			zap.Error(err),
		)
		return openSQLite(cfg)
	}
	return db, nil
}

func openPostgres(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{DB: db, Driver: DriverPostgres}, nil
}

func openSQLite(cfg config.DatabaseConfig) (*DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./crestline.db"
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", path)

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite serialises writes at the file level; a single connection avoids
	// SQLITE_BUSY churn under concurrent request handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{DB: db, Driver: DriverSQLite}, nil
}

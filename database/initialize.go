package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/db/migrations"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"todo-service/config"
)

// InitializeDatabase opens the configured SQL database, creates the
// users/todos tables and applies any extra migrations from MIGRATIONS_DIR.
// DB_DSN is handed to the driver unchanged.
func InitializeDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	dbConn, err := sqlx.ConnectContext(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.DBDriver, err)
	}

	// One sqlite connection: writers queue instead of failing with SQLITE_BUSY.
	if cfg.DBDriver == "sqlite3" {
		dbConn.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		if err := runMigrations(dbConn, cfg.MigrationsDir); err != nil {
			logger.Error("Error while running migration", zap.Error(err))
			dbConn.Close()
			return nil, fmt.Errorf("run migrations from %s: %w", cfg.MigrationsDir, err)
		}
	}

	logger.Info("Database initialized successfully", zap.String("driver", cfg.DBDriver))
	return dbConn, nil
}

// runMigrations turns a panic inside the migrations runner into an error.
func runMigrations(dbConn *sqlx.DB, dir string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("migrations panicked: %v", r)
		}
	}()
	return migrations.Migrate(dbConn, dir)
}

// Migrate creates the schema for the connection's dialect if it is missing.
func Migrate(ctx context.Context, dbConn *sqlx.DB) error {
	stmts, ok := schema[dbConn.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", dbConn.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := dbConn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Statements run one at a time; mysql rejects multi-statement Exec by default.
var schema = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT     NOT NULL UNIQUE,
			password   TEXT     NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id    INTEGER  NOT NULL REFERENCES users(id),
			title       TEXT     NOT NULL,
			description TEXT     NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL PRIMARY KEY,
			username   VARCHAR(255) NOT NULL UNIQUE,
			password   VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ  NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id          BIGSERIAL PRIMARY KEY,
			owner_id    BIGINT       NOT NULL REFERENCES users(id),
			title       TEXT         NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGINT AUTO_INCREMENT PRIMARY KEY,
			username   VARCHAR(255) NOT NULL UNIQUE,
			password   VARCHAR(255) NOT NULL,
			created_at DATETIME(6)  NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			owner_id    BIGINT      NOT NULL,
			title       TEXT        NOT NULL,
			description TEXT        NOT NULL,
			created_at  DATETIME(6) NOT NULL,
			INDEX idx_todos_owner (owner_id),
			FOREIGN KEY (owner_id) REFERENCES users(id)
		)`,
	},
}

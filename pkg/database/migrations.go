package database

import (
	"context"
	"database/sql"
	"fmt"

	"goride-payments/pkg/logger"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *sql.DB, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log,
	}
}

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	currentVersionQuery = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`
	insertVersionQuery  = `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`
	deleteVersionQuery  = `DELETE FROM schema_migrations WHERE version = $1`
)

func (m *Migrator) Up(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		migration := migration
		err := RunInTx(ctx, m.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, insertVersionQuery, migration.Version, migration.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Reverting migration: %s", migration.Description)

		err := RunInTx(ctx, m.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, deleteVersionQuery, migration.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	if err := m.db.QueryRowContext(ctx, currentVersionQuery).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create rides table",
			Up: `CREATE TABLE IF NOT EXISTS rides (
	ride_id BIGSERIAL PRIMARY KEY,
	origin_address VARCHAR(255) NOT NULL,
	destination_address VARCHAR(255) NOT NULL,
	origin_latitude DECIMAL(9, 6) NOT NULL,
	origin_longitude DECIMAL(9, 6) NOT NULL,
	destination_latitude DECIMAL(9, 6) NOT NULL,
	destination_longitude DECIMAL(9, 6) NOT NULL,
	ride_time INTEGER NOT NULL,
	fare_price DECIMAL(10, 2) NOT NULL CHECK (fare_price >= 0),
	payment_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
	driver_id BIGINT NOT NULL,
	user_id VARCHAR(128) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
			Down: `DROP TABLE IF EXISTS rides`,
		},
		{
			Version:     2,
			Description: "Create payments table",
			Up: `CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	ride_id BIGINT NOT NULL REFERENCES rides (ride_id),
	phone VARCHAR(15) NOT NULL,
	amount BIGINT NOT NULL CHECK (amount > 0),
	checkout_request_id VARCHAR(64) UNIQUE,
	merchant_request_id VARCHAR(64) UNIQUE,
	result_code INTEGER,
	result_desc TEXT,
	mpesa_receipt_number VARCHAR(32),
	status VARCHAR(16) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED')),
	raw_callback_payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at TIMESTAMPTZ,
	CHECK (checkout_request_id IS NOT NULL OR merchant_request_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_payments_ride_created ON payments (ride_id, created_at DESC)`,
			Down: `DROP TABLE IF EXISTS payments`,
		},
		{
			Version:     3,
			Description: "Constrain ride payment_status vocabulary",
			Up: `ALTER TABLE rides ADD CONSTRAINT rides_payment_status_check
	CHECK (payment_status IN ('PENDING', 'SUCCESS', 'FAILED'))`,
			Down: `ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_payment_status_check`,
		},
	}
}

package helper

//nolint:revive
import (
	"errors"
	"fmt"
	"net"
	"slotbook/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

const migrationSource = "file://migrations/postgres"

func databaseName(cfg *config.Config) string {
	name := cfg.DB.Postgres.Write.Name
	if cfg.DB.Postgres.Prefix != "" {
		return cfg.DB.Postgres.Prefix + name
	}

	return name
}

func newMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	connectionString := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s&x-migrations-table=%s",
		cfg.DB.Postgres.Write.Username,
		cfg.DB.Postgres.Write.Password,
		net.JoinHostPort(cfg.DB.Postgres.Write.Host, cfg.DB.Postgres.Write.Port),
		databaseName(cfg),
		cfg.DB.Postgres.Write.SSLMode,
		cfg.DB.Postgres.MigrationTable,
	)

	mig, err := migrate.New(migrationSource, connectionString)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}

	return mig, nil
}

func run(cfg *config.Config, action func(*migrate.Migrate) error, message string) error {
	mig, err := newMigrator(cfg)
	if err != nil {
		return err
	}

	defer mig.Close()

	if err := action(mig); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	log.Info().Msg(message)

	return nil
}

// Up applies all pending migrations.
func Up(cfg *config.Config) error {
	return run(cfg, (*migrate.Migrate).Up, "Database migrations completed successfully")
}

// StepUp applies a single pending migration.
func StepUp(cfg *config.Config) error {
	return run(cfg, func(mig *migrate.Migrate) error {
		return mig.Steps(1)
	}, "Database migrations completed successfully")
}

// Down rolls back the most recent migration.
func Down(cfg *config.Config) error {
	return run(cfg, func(mig *migrate.Migrate) error {
		return mig.Steps(-1)
	}, "Database migrations rolled back successfully")
}

// Drop rolls back every applied migration.
func Drop(cfg *config.Config) error {
	return run(cfg, (*migrate.Migrate).Down, "Database migrations rolled back successfully")
}

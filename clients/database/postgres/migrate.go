package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun/migrate"

	"github.com/kava-labs/odata-batch-proxy/logging"
)

// Migrate sets up and runs all migrations in the migrations model
// that haven't been run on the database being used by the gateway
// returning error (if any) and a list of migrations that have been
// run and any that were not
func (c *Client) Migrate(ctx context.Context, migrations migrate.Migrations, logger *logging.ServiceLogger) (*migrate.MigrationSlice, error) {
	if c.db == nil {
		return &migrate.MigrationSlice{}, ErrNoDatabase
	}

	logger = logging.OrNop(logger)

	// set up migration config
	migrator := migrate.NewMigrator(c.db, &migrations)

	// create / verify tables used to tack migrations
	err := migrator.Init(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	// run all un-applied migrations
	group, err := migrator.Migrate(ctx)

	// if migration failed attempt to rollback so migrations can be re-attempted
	if err != nil {
		group, rollbackErr := migrator.Rollback(ctx)

		if rollbackErr != nil {
			return &migrate.MigrationSlice{}, fmt.Errorf("error %s rolling back after original error %w", rollbackErr, err)
		}

		if group.ID == 0 {
			return &migrate.MigrationSlice{}, fmt.Errorf("no groups to rollback after migration error %w", err)
		}

		return &migrate.MigrationSlice{}, fmt.Errorf("rolled back after migration error %w", err)
	}

	// get the status of all run and un-run migrations
	ms, err := migrator.MigrationsWithStatus(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	if group.ID == 0 {
		logger.Debug().Msg("there are no new migrations to run")
	} else {
		logger.Info().Int64("group_id", group.ID).Int("migrations", len(group.Migrations)).Msg("ran database migrations")
	}

	return &ms, nil
}

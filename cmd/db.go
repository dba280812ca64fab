// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/config"
	"github.com/otherjamesbrown/dicta-cli/pkg/db"
)

// DBCommandDeps holds the dependencies for the db commands.
type DBCommandDeps struct {
	// Connect opens the database pool. Injectable for tests.
	Connect func(ctx context.Context) (*pgxpool.Pool, func(), error)

	// Output receives command results, normally stdout.
	Output io.Writer
}

// DefaultDBDeps returns the default dependencies for production use.
func DefaultDBDeps() *DBCommandDeps {
	return &DBCommandDeps{
		Output: os.Stdout,
		Connect: func(ctx context.Context) (*pgxpool.Pool, func(), error) {
			cfg, err := config.LoadConfig()
			if err != nil {
				return nil, nil, err
			}
			pool, err := db.Connect(ctx, cfg.Database.PoolConfig())
			if err != nil {
				return nil, nil, err
			}
			return pool, func() { db.Close(pool) }, nil
		},
	}
}

// NewDBCommand creates the db command with migrate and health subcommands.
func NewDBCommand(deps *DBCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDBDeps()
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
		Long: `Database maintenance commands.

Subcommands:
  migrate   Apply any pending schema migrations
  health    Check database connectivity and pool state`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd.Context(), deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and pool state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBHealth(cmd.Context(), deps)
		},
	})

	return cmd
}

func runDBMigrate(ctx context.Context, deps *DBCommandDeps) error {
	pool, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := db.RunMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if len(result.Applied) == 0 {
		fmt.Fprintf(deps.Output, "Schema up to date (%d migrations already applied)\n", len(result.Skipped))
		return nil
	}
	for _, name := range result.Applied {
		fmt.Fprintf(deps.Output, "Applied %s\n", name)
	}
	return nil
}

func runDBHealth(ctx context.Context, deps *DBCommandDeps) error {
	pool, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status := db.Check(ctx, pool)
	if !status.Healthy {
		return fmt.Errorf("database unhealthy: %w", status.Error)
	}

	fmt.Fprintf(deps.Output, "Database healthy (latency %s, conns %d total / %d idle / %d acquired)\n",
		status.Latency, status.TotalConns, status.IdleConns, status.AcquiredConns)
	return nil
}

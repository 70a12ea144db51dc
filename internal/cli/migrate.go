package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/pkg/database"
)

// NewMigrateCommand creates the migrate command with up, down and version subcommands.
func NewMigrateCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:          "up",
		Short:        "Apply all pending migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(deps)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:          "down",
		Short:        "Roll back migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			m, err := openMigrator(deps)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:          "version",
		Short:        "Print the current schema version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(deps)
			if err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func openMigrator(deps Deps) (Migrator, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	return deps.NewMigrator(cfg), nil
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}

// DSNMigrator runs the embedded migrations against a DSN.
type DSNMigrator struct {
	DSN string
}

// NewDSNMigrator returns the migrator for the configured database.
func NewDSNMigrator(cfg *config.Config) Migrator {
	return DSNMigrator{DSN: cfg.Database.DSN()}
}

func (m DSNMigrator) Up() error            { return database.Migrate(m.DSN) }
func (m DSNMigrator) Down(steps int) error { return database.MigrateDown(m.DSN, steps) }
func (m DSNMigrator) Version() (uint, bool, error) {
	return database.MigrationVersion(m.DSN)
}

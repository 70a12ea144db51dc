package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/missoes/backend/config"
)

// Version is set at build time with -ldflags "-X github.com/missoes/backend/internal/cli.Version=...".
var Version = "dev"

// Migrator applies and inspects schema migrations.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (version uint, dirty bool, err error)
}

// AdminGranter promotes an existing profile to super admin.
type AdminGranter interface {
	GrantAdmin(ctx context.Context, email string) (uuid.UUID, error)
}

// Deps builds the collaborators of each command. Commands open them lazily so
// that help and version never touch the database.
type Deps struct {
	LoadConfig  func() (*config.Config, error)
	NewMigrator func(cfg *config.Config) Migrator
	NewGranter  func(ctx context.Context, cfg *config.Config) (AdminGranter, func(), error)
}

// NewRootCommand creates the root command for missionctl.
func NewRootCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missionctl",
		Short: "Missões operator CLI",
		Long:  "Operational commands for the Missões backend: schema migrations and admin bootstrap.",
	}

	cmd.AddCommand(NewMigrateCommand(deps))
	cmd.AddCommand(NewGrantAdminCommand(deps))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the missionctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

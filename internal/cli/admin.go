package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/users"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/redis"
)

// NewGrantAdminCommand creates the grant-admin command used to bootstrap the first super admin.
func NewGrantAdminCommand(deps Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:          "grant-admin",
		Short:        "Make an existing user a super admin",
		Long:         "Sets profile_type and role to admin for the user registered under --email.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			granter, closeFn, err := deps.NewGranter(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			id, err := granter.GrantAdmin(ctx, email)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no user registered with %s", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted admin to %s (%s)\n", email, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail of the user to promote")
	return cmd
}

// PoolGranter promotes users through Postgres and drops their cached access.
type PoolGranter struct {
	pool  *pgxpool.Pool
	cache access.Cache
}

// GrantAdmin implements AdminGranter.
func (g *PoolGranter) GrantAdmin(ctx context.Context, email string) (uuid.UUID, error) {
	id, err := users.GrantAdmin(ctx, g.pool, email)
	if err != nil {
		return uuid.Nil, err
	}
	if g.cache != nil {
		g.cache.Delete(ctx, id)
	}
	return id, nil
}

// NewPoolGranter opens the database and, when reachable, Redis for cache invalidation.
func NewPoolGranter(ctx context.Context, cfg *config.Config) (AdminGranter, func(), error) {
	logger := zap.NewNop()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	g := &PoolGranter{pool: pool}
	closeFn := pool.Close
	if rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger); err == nil {
		g.cache = access.NewRedisCache(rdb.Client, cfg.Access.CacheTTL, logger)
		closeFn = func() {
			_ = rdb.Close()
			pool.Close()
		}
	}
	return g, closeFn, nil
}

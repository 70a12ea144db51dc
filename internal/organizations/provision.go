package organizations

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missoes/backend/internal/auth"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// Provisioner creates organizations and their admin accounts atomically.
type Provisioner struct {
	pool *pgxpool.Pool
}

// NewProvisioner creates a provisioner on pool.
func NewProvisioner(pool *pgxpool.Pool) *Provisioner {
	return &Provisioner{pool: pool}
}

// CreateWithOwner writes the owner account, its organization profile and admin
// role, the organization and the owner membership in one transaction.
func (p *Provisioner) CreateWithOwner(ctx context.Context, in models.OrganizationInput, email string) (*models.Organization, *models.Account, error) {
	var org *models.Organization
	var account *models.Account
	err := database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		a, _, err := auth.Provision(ctx, tx, auth.NewAccount{
			Email:       email,
			Name:        in.Name,
			ProfileType: models.ProfileOrganization,
			Role:        models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		repo := NewRepository(tx)
		o, err := repo.Create(ctx, in, &a.ID)
		if err != nil {
			return err
		}
		if err := repo.AddMember(ctx, o.ID, a.ID, models.MemberRoleOwner); err != nil {
			return err
		}
		org, account = o, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return org, account, nil
}

// AddUser provisions an organization admin account as a member of orgID.
func (p *Provisioner) AddUser(ctx context.Context, orgID int64, in auth.NewAccount) (*models.Account, *models.User, error) {
	var account *models.Account
	var user *models.User
	err := database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		in.ProfileType = models.ProfileOrganization
		in.Role = models.RoleAdmin
		a, u, err := auth.Provision(ctx, tx, in)
		if err != nil {
			return err
		}
		if err := NewRepository(tx).AddMember(ctx, orgID, a.ID, models.MemberRoleMember); err != nil {
			return err
		}
		account, user = a, u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return account, user, nil
}

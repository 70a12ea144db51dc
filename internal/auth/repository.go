package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/internal/users"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/utils"
)

// ErrEmailTaken is returned when an account with the e-mail already exists.
var ErrEmailTaken = errors.New("email already registered")

const accountColumns = `id, email, password_hash, metadata, created_at, updated_at`

// Repository handles account persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an auth repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var meta []byte
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &meta, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode account metadata: %w", err)
		}
	}
	return &a, nil
}

// GetAccountByID returns an account by ID.
func (r *Repository) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetAccountByEmail returns an account by e-mail, case-insensitively.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

// CreateAccount inserts an account. A duplicate e-mail yields ErrEmailTaken.
func (r *Repository) CreateAccount(ctx context.Context, email, passwordHash string, metadata map[string]any) (*models.Account, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode account metadata: %w", err)
	}
	q := `INSERT INTO accounts (email, password_hash, metadata) VALUES ($1, $2, $3) RETURNING ` + accountColumns
	a, err := scanAccount(r.db.QueryRow(ctx, q, strings.TrimSpace(email), passwordHash, meta))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// UpdatePassword replaces the password hash of id.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// NewAccount describes an account provisioned together with its profile and role.
type NewAccount struct {
	Email       string
	Password    string // empty generates a random one
	Name        string
	ProfileType models.ProfileType
	Role        models.Role
}

// Provision creates the account, its profile row and its role row inside tx.
func Provision(ctx context.Context, tx pgx.Tx, in NewAccount) (*models.Account, *models.User, error) {
	password := in.Password
	if password == "" {
		var err error
		if password, err = utils.RandomPassword(); err != nil {
			return nil, nil, err
		}
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	account, err := NewRepository(tx).CreateAccount(ctx, in.Email, hash, map[string]any{"full_name": in.Name})
	if err != nil {
		return nil, nil, err
	}
	profiles := users.NewRepository(tx)
	user, err := profiles.Create(ctx, account.ID, users.ProfileName(in.Name, account.Email), account.Email, in.ProfileType)
	if err != nil {
		return nil, nil, err
	}
	if err := profiles.UpsertRole(ctx, account.ID, in.Role); err != nil {
		return nil, nil, err
	}
	return account, user, nil
}

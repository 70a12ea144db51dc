package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/internal/notifications"
	"github.com/missoes/backend/internal/users"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
	"github.com/missoes/backend/pkg/utils"
)

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// SigninRequest is the body for POST /auth/signin.
type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RecoverRequest is the body for POST /auth/recover.
type RecoverRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// RecoveryLinkRequest is the body for POST /auth/recover/request.
type RecoveryLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Invalidator drops a user's cached access.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	pool     *pgxpool.Pool
	repo     *Repository
	profiles *users.Repository
	jwt      *JWTService
	sessions *SessionStore
	recovery *Recovery
	notifier *notifications.Notifier
	access   Invalidator
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(pool *pgxpool.Pool, repo *Repository, profiles *users.Repository, jwt *JWTService, sessions *SessionStore,
	recovery *Recovery, notifier *notifications.Notifier, access Invalidator, logger *zap.Logger) *Handler {
	return &Handler{
		pool:     pool,
		repo:     repo,
		profiles: profiles,
		jwt:      jwt,
		sessions: sessions,
		recovery: recovery,
		notifier: notifier,
		access:   access,
		logger:   logger,
	}
}

// Signup handles POST /auth/signup. Account, profile, role and the welcome
// notification are written in one transaction.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	var user *models.User
	var welcome *models.Notification
	err := database.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		account, u, err := Provision(ctx, tx, NewAccount{
			Email:       req.Email,
			Password:    req.Password,
			Name:        req.Name,
			ProfileType: models.ProfileUser,
			Role:        models.RoleUser,
		})
		if err != nil {
			return err
		}
		user = u
		welcome, err = notifications.NewRepository(tx).Create(ctx, account.ID, models.NotificationNewUser,
			map[string]string{"name": u.Name, "email": u.Email})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("signup", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}
	h.notifier.Push(welcome)

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user})
}

// Signin handles POST /auth/signin.
func (h *Handler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	account, err := h.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Error("signin lookup", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, account.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	user, err := h.profiles.EnsureProfile(ctx, account)
	if err != nil {
		h.logger.Error("ensure profile", zap.Error(err), zap.String("user_id", account.ID.String()))
		response.Internal(c, "failed to load profile")
		return
	}

	token, err := h.jwt.Generate(account.ID, account.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user})
}

// Signout handles POST /auth/signout. The session stays revoked until the token would expire.
func (h *Handler) Signout(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	if err := h.sessions.Revoke(ctx, middleware.SessionID(c), time.Now().Add(h.jwt.TTL())); err != nil {
		h.logger.Error("signout", zap.Error(err))
		response.Internal(c, "failed to sign out")
		return
	}
	h.access.Invalidate(ctx, userID)
	response.OK(c, gin.H{"message": "signed out"})
}

// RequestRecovery handles POST /auth/recover/request. The answer does not reveal whether the e-mail exists.
func (h *Handler) RequestRecovery(c *gin.Context) {
	var req RecoveryLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	account, err := h.repo.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		if err := h.recovery.SendLink(ctx, account, account.FullName(), models.EmailTypeRecovery); err != nil {
			h.logger.Error("send recovery link", zap.Error(err), zap.String("user_id", account.ID.String()))
		}
	} else if !errors.Is(err, database.ErrNotFound) {
		h.logger.Error("recovery lookup", zap.Error(err))
	}
	response.OK(c, gin.H{"message": "if the email is registered, a recovery link was sent"})
}

// Recover handles POST /auth/recover. Each recovery token works once.
func (h *Handler) Recover(c *gin.Context) {
	var req RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	userID, err := h.recovery.Consume(ctx, req.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidRecovery) {
			response.BadRequest(c, ErrInvalidRecovery.Error())
			return
		}
		h.logger.Error("consume recovery", zap.Error(err))
		response.Internal(c, "failed to verify token")
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		h.logger.Error("update password", zap.Error(err))
		response.Internal(c, "failed to update password")
		return
	}
	if err := h.sessions.RevokeUser(ctx, userID, time.Now().Add(h.jwt.TTL())); err != nil {
		h.logger.Error("revoke sessions after recovery", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "password updated, but existing sessions could not be signed out")
		return
	}
	h.access.Invalidate(ctx, userID)
	response.OK(c, gin.H{"message": "password updated"})
}

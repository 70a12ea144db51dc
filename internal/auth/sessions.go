package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	revokedPrefix     = "session:revoked:"
	revokedUserPrefix = "session:revoked-user:"
	recoveryPrefix    = "recovery:"
)

// SessionStore keeps revoked sessions and pending recovery nonces in Redis.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Revoke marks sessionID as signed out until it would have expired anyway.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+sessionID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether sessionID was signed out.
func (s *SessionStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}

// RevokeUser signs out every session of userID issued before now. The cutoff is
// kept until sessions issued now would have expired.
func (s *SessionStore) RevokeUser(ctx context.Context, userID uuid.UUID, until time.Time) error {
	now := time.Now()
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedUserPrefix+userID.String(), now.UnixNano(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// RevokedBefore returns the cutoff set by RevokeUser, or the zero time.
func (s *SessionStore) RevokedBefore(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	n, err := s.client.Get(ctx, revokedUserPrefix+userID.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("check user sessions: %w", err)
	}
	return time.Unix(0, n), nil
}

// SaveRecoveryNonce records a pending recovery link.
func (s *SessionStore) SaveRecoveryNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, recoveryPrefix+nonce, 1, ttl).Err(); err != nil {
		return fmt.Errorf("save recovery nonce: %w", err)
	}
	return nil
}

// ConsumeRecoveryNonce deletes the nonce and reports whether it was still pending.
func (s *SessionStore) ConsumeRecoveryNonce(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Del(ctx, recoveryPrefix+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("consume recovery nonce: %w", err)
	}
	return n > 0, nil
}

// Revocations is the part of SessionStore used to validate requests.
type Revocations interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	RevokedBefore(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// Authenticator validates bearer tokens against the JWT secret and revoked sessions.
type Authenticator struct {
	jwt     *JWTService
	revoked Revocations
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(jwtService *JWTService, revoked Revocations) *Authenticator {
	return &Authenticator{jwt: jwtService, revoked: revoked}
}

// ValidateSession returns the user and session of a live token.
func (a *Authenticator) ValidateSession(ctx context.Context, token string) (uuid.UUID, string, error) {
	claims, err := a.jwt.Validate(token)
	if err != nil {
		return uuid.Nil, "", err
	}
	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if revoked {
		return uuid.Nil, "", ErrRevoked
	}
	cutoff, err := a.revoked.RevokedBefore(ctx, claims.UserID)
	if err != nil {
		return uuid.Nil, "", err
	}
	// iat has second precision, so a login in the same second as the cutoff is also refused.
	if !cutoff.IsZero() && (claims.IssuedAt == nil || claims.IssuedAt.Time.Before(cutoff)) {
		return uuid.Nil, "", ErrRevoked
	}
	return claims.UserID, claims.ID, nil
}

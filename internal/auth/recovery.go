package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/queue"
)

var (
	ErrInvalidRecovery  = errors.New("invalid or expired recovery token")
	ErrRecoveryDisabled = errors.New("recovery links need a service-role key")
)

const recoveryAudience = "recovery"

// RecoveryClaims is the signed content of a recovery token.
type RecoveryClaims struct {
	UserID    uuid.UUID
	Nonce     string
	ExpiresAt int64
}

// SignRecovery encodes claims as an HS256 JWT scoped to the recovery audience.
func SignRecovery(key []byte, claims RecoveryClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   claims.UserID.String(),
		ID:        claims.Nonce,
		Audience:  jwt.ClaimStrings{recoveryAudience},
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
	})
	return token.SignedString(key)
}

// ParseRecovery verifies the signature, audience and expiry of token at now.
func ParseRecovery(key []byte, token string, now time.Time) (RecoveryClaims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(recoveryAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return RecoveryClaims{}, ErrInvalidRecovery
	}
	userID, err := uuid.Parse(rc.Subject)
	if err != nil || userID == uuid.Nil || rc.ID == "" {
		return RecoveryClaims{}, ErrInvalidRecovery
	}
	return RecoveryClaims{UserID: userID, Nonce: rc.ID, ExpiresAt: rc.ExpiresAt.Unix()}, nil
}

// NonceStore tracks pending recovery tokens so each can be used once.
type NonceStore interface {
	SaveRecoveryNonce(ctx context.Context, nonce string, ttl time.Duration) error
	ConsumeRecoveryNonce(ctx context.Context, nonce string) (bool, error)
}

// EmailEnqueuer hands e-mails to the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Recovery issues and redeems password recovery links.
type Recovery struct {
	key    []byte
	ttl    time.Duration
	appURL string
	nonces NonceStore
	mail   EmailEnqueuer
}

// NewRecovery creates a recovery service signing with the service-role key.
func NewRecovery(serviceKey string, ttl time.Duration, appURL string, nonces NonceStore, mail EmailEnqueuer) *Recovery {
	return &Recovery{key: []byte(serviceKey), ttl: ttl, appURL: strings.TrimRight(appURL, "/"), nonces: nonces, mail: mail}
}

// Issue returns a new single-use recovery token for userID.
func (r *Recovery) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if len(r.key) == 0 {
		return "", ErrRecoveryDisabled
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("recovery nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	token, err := SignRecovery(r.key, RecoveryClaims{UserID: userID, Nonce: nonce, ExpiresAt: time.Now().Add(r.ttl).Unix()})
	if err != nil {
		return "", err
	}
	if err := r.nonces.SaveRecoveryNonce(ctx, nonce, r.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume verifies token and burns it, returning its user.
func (r *Recovery) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	if len(r.key) == 0 {
		return uuid.Nil, ErrInvalidRecovery
	}
	claims, err := ParseRecovery(r.key, token, time.Now())
	if err != nil {
		return uuid.Nil, err
	}
	ok, err := r.nonces.ConsumeRecoveryNonce(ctx, claims.Nonce)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, ErrInvalidRecovery
	}
	return claims.UserID, nil
}

// Link returns the frontend URL that redeems token.
func (r *Recovery) Link(token string) string {
	return r.appURL + "/recuperar-senha?token=" + url.QueryEscape(token)
}

// SendLink issues a token for account and enqueues an e-mail carrying its link.
func (r *Recovery) SendLink(ctx context.Context, account *models.Account, name, emailType string) error {
	token, err := r.Issue(ctx, account.ID)
	if err != nil {
		return err
	}
	link := r.Link(token)
	subject := "Defina sua senha"
	if emailType == models.EmailTypeWelcome {
		subject = "Bem-vindo(a) ao Missões"
	}
	id := account.ID
	return r.mail.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		UserID:         &id,
		RecipientEmail: account.Email,
		RecipientName:  name,
		Subject:        subject,
		BodyHTML:       fmt.Sprintf(`<p>Olá, %s!</p><p><a href="%s">Clique aqui para definir sua senha</a>.</p>`, html.EscapeString(name), link),
		BodyText:       fmt.Sprintf("Olá, %s!\n\nDefina sua senha em: %s\n", name, link),
	})
}

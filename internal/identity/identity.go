// Package identity turns bearer tokens into actors.
//
// Tokens are HS256 JWTs whose subject is the account ID and whose "role"
// claim is citizen, official or admin. The rest of the system never looks
// at credentials; it only receives the resulting model.Actor.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/civicmap/internal/model"
)

// Errors returned by Verify and FromRequest. Both map to 401 at the HTTP
// boundary.
var (
	// ErrMissingToken is returned when no bearer token was supplied.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 16

// DefaultIssuer is the iss claim written and expected by default.
const DefaultIssuer = "civicmap"

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authority issues and verifies tokens with one shared secret.
type Authority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option is a function that configures an Authority.
type Option func(*Authority)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) Option {
	return func(a *Authority) {
		a.issuer = issuer
	}
}

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock replaces the time source used for iat, exp and validation.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// New creates an Authority.
func New(secret []byte, opts ...Option) (*Authority, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	a := &Authority{
		secret: secret,
		issuer: DefaultIssuer,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue mints a token for actor.
func (a *Authority) Issue(actor model.Actor) (string, error) {
	if actor.ID == "" {
		return "", model.NewValidationError("subject", "must not be empty")
	}
	if _, err := model.ParseRole(string(actor.Role)); err != nil {
		return "", err
	}

	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Role: string(actor.Role),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the actor.
func (a *Authority) Verify(raw string) (model.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Actor{}, ErrMissingToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if parsed.Subject == "" {
		return model.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role, err := model.ParseRole(parsed.Role)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return model.Actor{ID: parsed.Subject, Role: role}, nil
}

// FromRequest reads the Authorization header of r.
func (a *Authority) FromRequest(r *http.Request) (model.Actor, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return model.Actor{}, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return model.Actor{}, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	return a.Verify(token)
}

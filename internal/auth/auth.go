// Package auth issues and verifies the HS256 bearer tokens of the HTTP API
// and turns verified claims into manager requesters.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/HerbHall/rackledger/internal/managers"
	"github.com/HerbHall/rackledger/pkg/models"
)

// Token errors.
var (
	ErrNoSecret     = errors.New("auth: no signing secret configured")
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the custom claims carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"user_id"`
	UserName string `json:"user_name"`
	GroupID  int    `json:"group_id"`
	// Database is the tenant database in cloud mode.
	Database string `json:"database,omitempty"`
}

// Requester returns the manager requester the claims identify.
func (c *Claims) Requester() *managers.Requester {
	return &managers.Requester{UserID: c.UserID, UserName: c.UserName, GroupID: c.GroupID}
}

// Issuer signs and verifies tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret. Tokens expire after ttl.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (i *Issuer) Issue(u *models.User) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(u.PublicID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:   u.PublicID,
		UserName: u.UserName,
		GroupID:  u.GroupID,
		Database: u.Database,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates a signed token.
func (i *Issuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

type claimsKey struct{}

// WithClaims stores verified claims on ctx. A tenant database in the claims
// is also recorded for the manager provider.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, c)
	if c.Database != "" {
		ctx = managers.WithTenant(ctx, c.Database)
	}
	return ctx
}

// FromContext returns the claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// RequesterFromContext returns the requester of an authenticated request,
// or nil when the request carries no claims.
func RequesterFromContext(ctx context.Context) *managers.Requester {
	c, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return c.Requester()
}

// Package auth issues and verifies the bearer credentials attached to every
// authenticated API call.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/burgerbus/memberclub/internal/domain"
)

// Identity is the claim set embedded in an access token.
type Identity struct {
	MemberID string
	Email    string
	Role     domain.Role
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	nowFn  func() time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewTokenIssuer constructs a TokenIssuer. The secret must be non-empty.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		nowFn:  time.Now,
	}, nil
}

// WithClock overrides the time provider (used primarily in tests).
func (t *TokenIssuer) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		t.nowFn = nowFn
	}
}

// Issue mints a signed access token for the given identity.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	if id.MemberID == "" {
		return "", errors.New("member id is required")
	}
	now := t.nowFn()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.MemberID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email: id.Email,
		Role:  string(id.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns the embedded identity. Expired,
// malformed or foreign tokens map to domain.ErrUnauthorized so callers can
// force re-authentication without inspecting jwt internals.
func (t *TokenIssuer) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", domain.ErrUnauthorized)
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(t.nowFn),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}

	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleMember
	}
	return Identity{
		MemberID: claims.Subject,
		Email:    claims.Email,
		Role:     role,
	}, nil
}

// Package auth issues and verifies HS256 bearer tokens. The token subject
// is the caller identity used by the oracle's access control.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stdref/internal/oracle"
)

var (
	ErrMissingSecret = errors.New("auth: secret is empty")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims carries the caller identity in Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer mints and checks tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret, issuer string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue returns a signed token for id. A zero ttl means no expiry.
func (s *Signer) Issue(id oracle.Identity, ttl time.Duration) (string, error) {
	if id == "" {
		return "", fmt.Errorf("issue token: empty identity")
	}
	now := s.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  string(id),
		Issuer:   s.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses token and returns its subject.
func (s *Signer) Verify(token string) (oracle.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return oracle.Identity(claims.Subject), nil
}

type identityKey struct{}

// WithIdentity stores the authenticated caller on ctx.
func WithIdentity(ctx context.Context, id oracle.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by WithIdentity.
func IdentityFrom(ctx context.Context) (oracle.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(oracle.Identity)
	return id, ok && id != ""
}

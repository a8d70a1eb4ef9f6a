// Package auth carries caller identity through the request context and
// decides whether a caller may perform an operation.
//
// Identity comes from an HS256 bearer token parsed by Middleware. Access is
// decided by a Policy chosen at startup: RolePolicy in production, AllowAll
// for local development and tests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
)

// Role is a caller capability carried in the token.
type Role string

// Known roles. Admin implies every other role.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Claims are the token claims calgraph understands.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Has reports whether the claims grant role.
func (c *Claims) Has(role Role) bool {
	if c == nil {
		return false
	}
	return c.Role == role || c.Role == RoleAdmin
}

type contextKey struct{}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClaimsFrom returns the caller's claims, if the request carried a valid token.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok && c != nil
}

// Policy decides whether the caller in ctx may act with role.
type Policy interface {
	// Require returns nil if allowed, or a *errors.ForbiddenError.
	Require(ctx context.Context, role Role) error
}

// AllowAll permits every caller. Only for development and tests.
type AllowAll struct{}

// Require always allows.
func (AllowAll) Require(context.Context, Role) error { return nil }

// RolePolicy permits callers whose token grants the role.
type RolePolicy struct{}

// Require checks the claims in ctx.
func (RolePolicy) Require(ctx context.Context, role Role) error {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return &cerrors.ForbiddenError{Required: string(role), Reason: "no credentials"}
	}
	if !c.Has(role) {
		return &cerrors.ForbiddenError{Required: string(role), Reason: fmt.Sprintf("caller has role %q", c.Role)}
	}
	return nil
}

// PolicyFor returns AllowAll when disabled, RolePolicy otherwise.
func PolicyFor(disabled bool) Policy {
	if disabled {
		return AllowAll{}
	}
	return RolePolicy{}
}

// IssueToken signs a token for subject with role, valid for ttl.
func IssueToken(secret []byte, subject string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(secret []byte, token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	return &claims, nil
}

// Middleware attaches the claims of a valid "Authorization: Bearer" token to
// the request context. Requests without a valid token continue anonymously;
// the Policy decides what an anonymous caller may do.
func Middleware(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseToken(secret, token)
			if err != nil {
				if logger != nil {
					logger.Debug("ignoring invalid bearer token", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

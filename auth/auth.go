// Package auth extracts the caller identity supplied by the upstream
// identity boundary. Verification is HS256 JWT when a secret is
// configured; otherwise the bearer token carries "subject|role"
// directly, which is what the test harness and local development use.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeyClaims contextKey = "identity_claims"

// Role represents an authorized persona within the platform.
type Role string

// Supported roles.
const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

var allowedRoles = map[Role]struct{}{
	RoleMember: {},
	RoleAdmin:  {},
}

// Claims represents identity data extracted from the inbound request.
type Claims struct {
	Subject string
	Role    Role
}

// Options controls token verification.
type Options struct {
	// JWTSecret enables HS256 verification when non-empty.
	JWTSecret []byte
	Issuer    string
	Audience  string
	// RoleClaim names the JWT claim carrying the role. Defaults to "role".
	RoleClaim string
}

// ErrNoIdentity is returned when the request context carries no claims.
var ErrNoIdentity = errors.New("auth: no identity in context")

// Authenticate returns middleware that resolves the caller identity and
// stores it on the request context. Requests without a usable identity
// are rejected with 401.
func Authenticate(opts Options) func(http.Handler) http.Handler {
	roleClaim := opts.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			var claims *Claims
			var err error
			if len(opts.JWTSecret) > 0 {
				claims, err = verifyJWT(token, opts, roleClaim)
			} else {
				claims, err = parseDevToken(token)
			}
			if err != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that rejects callers whose role is not
// in the allowed set.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := FromContext(r.Context())
			if err != nil {
				http.Error(w, "missing identity", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the claims stored by Authenticate.
func FromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(contextKeyClaims).(*Claims)
	if !ok || claims == nil {
		return nil, ErrNoIdentity
	}
	return claims, nil
}

func verifyJWT(token string, opts Options, roleClaim string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return opts.JWTSecret, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("auth: unexpected claims type")
	}
	subject, err := mapClaims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("auth: token missing subject")
	}
	rawRole, _ := mapClaims[roleClaim].(string)
	role := Role(strings.ToLower(strings.TrimSpace(rawRole)))
	if _, ok := allowedRoles[role]; !ok {
		return nil, fmt.Errorf("auth: unsupported role %q", rawRole)
	}
	return &Claims{Subject: subject, Role: role}, nil
}

func parseDevToken(token string) (*Claims, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("auth: malformed dev token")
	}
	subject := strings.TrimSpace(parts[0])
	role := Role(strings.ToLower(strings.TrimSpace(parts[1])))
	if subject == "" {
		return nil, fmt.Errorf("auth: empty subject")
	}
	if _, ok := allowedRoles[role]; !ok {
		return nil, fmt.Errorf("auth: unsupported role %q", parts[1])
	}
	return &Claims{Subject: subject, Role: role}, nil
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/platform/requestctx"
)

const (
	defaultRoleClaim     = "role"
	defaultEmailClaim    = "email"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals an expired bearer token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a bearer token that failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// RoleResolver supplies additional roles when the token claims do not satisfy a guard.
type RoleResolver func(ctx context.Context, uid string) ([]string, error)

// Authenticator turns bearer tokens into identities on the request context.
type Authenticator struct {
	verifier TokenVerifier
	resolve  RoleResolver
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleResolver consults resolve when a role guard is not met by token claims alone.
func WithRoleResolver(resolve RoleResolver) Option {
	return func(a *Authenticator) {
		a.resolve = resolve
	}
}

// WithVerificationTimeout bounds token verification and role resolution.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the bearer token and, when roles are given, requires one of them. Every
// failure answers 401.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(r, w, "unauthenticated", "not authorized, no token")
				return
			}
			if a == nil || a.verifier == nil {
				deny(r, w, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			defer cancel()

			token, err := a.verifier.VerifyIDToken(ctx, raw)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					deny(r, w, "token_expired", "not authorized, token expired")
					return
				}
				deny(r, w, "invalid_token", "not authorized, token failed")
				return
			}

			identity := &Identity{
				UID:   token.UID,
				Email: stringClaim(token.Claims, defaultEmailClaim),
				Roles: rolesFromClaims(token.Claims[defaultRoleClaim]),
				token: token,
			}
			if len(allowedRoles) > 0 && !hasAnyRole(identity, allowedRoles) && a.resolve != nil {
				extra, err := a.resolve(ctx, identity.UID)
				if err != nil {
					deny(r, w, "invalid_token", "not authorized, user not found")
					return
				}
				identity.Roles = mergeRoles(identity.Roles, extra)
			}
			if len(identity.Roles) == 0 {
				identity.Roles = []string{RoleUser}
			}

			if len(allowedRoles) > 0 && !hasAnyRole(identity, allowedRoles) {
				deny(r, w, "insufficient_role", "not authorized as an admin")
				return
			}

			requestctx.SetUserID(r.Context(), identity.UID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func deny(r *http.Request, w http.ResponseWriter, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, http.StatusUnauthorized))
}

func hasAnyRole(identity *Identity, roles []string) bool {
	for _, role := range roles {
		if identity.HasRole(role) {
			return true
		}
	}
	return false
}

func rolesFromClaims(raw any) []string {
	switch v := raw.(type) {
	case string:
		return mergeRoles(nil, []string{v})
	case []string:
		return mergeRoles(nil, v)
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		return mergeRoles(nil, values)
	default:
		return nil
	}
}

func mergeRoles(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, role := range append(append([]string(nil), base...), extra...) {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

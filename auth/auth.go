package auth

import (
	"context"
	"net/http"
	"time"
)

// Method names the credential type that authenticated a caller.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodJWT    Method = "jwt"
)

// Identity is an authenticated caller.
type Identity struct {
	// Principal is the key name or token subject.
	Principal string

	Method Method

	// Claims holds token claims, or key_id for API keys.
	Claims map[string]any

	// ExpiresAt is zero when the credential does not expire.
	ExpiresAt time.Time
}

// Authenticator validates the credentials carried by an HTTP request.
//
// Contract:
// - Supports must be cheap and only inspect headers.
// - Authenticate returns (nil, err) with ErrMissingCredentials,
// ErrInvalidCredentials, ErrTokenExpired or ErrTokenMalformed for a
// rejected caller; any other error is an internal failure.
// - Implementations must be safe for concurrent use.
type Authenticator interface {
	Name() string
	Supports(r *http.Request) bool
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

type contextKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity attached by Require, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// PrincipalFromContext returns the authenticated principal, or "".
func PrincipalFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Principal
	}
	return ""
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the required iss claim, when set.
	Issuer string

	// Audience is the required aud claim, when set.
	Audience string

	// Methods lists the accepted signing algorithms.
	// Default: HS256 for a static secret, RS256 otherwise
	Methods []string

	// Leeway tolerates clock skew on exp and nbf.
	// Default: 30 seconds
	Leeway time.Duration

	// PrincipalClaim names the claim used as the principal.
	// Default: "sub"
	PrincipalClaim string
}

// KeyProvider returns the verification key for a token's kid header.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider serves one HMAC secret regardless of kid.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a provider for a shared HMAC secret.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the secret.
func (p *StaticKeyProvider) GetKey(context.Context, string) (any, error) {
	if len(p.key) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// JWTAuthenticator verifies "Authorization: Bearer <token>" headers.
type JWTAuthenticator struct {
	config JWTConfig
	keys   KeyProvider
	opts   []jwt.ParserOption
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig, keys KeyProvider) *JWTAuthenticator {
	if len(cfg.Methods) == 0 {
		if _, ok := keys.(*StaticKeyProvider); ok {
			cfg.Methods = []string{jwt.SigningMethodHS256.Alg()}
		} else {
			cfg.Methods = []string{jwt.SigningMethodRS256.Alg()}
		}
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	if cfg.PrincipalClaim == "" {
		cfg.PrincipalClaim = "sub"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Methods),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTAuthenticator{config: cfg, keys: keys, opts: opts}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return string(MethodJWT)
}

// Supports reports whether the request carries a bearer token.
func (a *JWTAuthenticator) Supports(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

// Authenticate verifies the token signature and registered claims.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keys.GetKey(ctx, kid)
	}, a.opts...)
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredentials
	}

	id := &Identity{
		Method: MethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		id.Claims[k] = v
	}
	if p, ok := claims[a.config.PrincipalClaim].(string); ok {
		id.Principal = p
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

// classifyJWTError maps parser errors onto the package sentinels. Key
// fetch failures stay internal errors.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, ErrJWKSFetch):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, ErrKeyNotFound):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrKeyNotFound)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// Header carries the key.
	// Default: "X-API-Key"
	Header string

	// Keys maps a key name (the principal) to its secret value.
	Keys map[string]string
}

type apiKey struct {
	name string
	hash [sha256.Size]byte
}

// APIKeyAuthenticator accepts requests carrying one of a fixed set of keys.
type APIKeyAuthenticator struct {
	header string
	keys   []apiKey
}

// NewAPIKeyAuthenticator creates an API key authenticator. Empty key values
// are ignored.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) *APIKeyAuthenticator {
	if cfg.Header == "" {
		cfg.Header = "X-API-Key"
	}

	names := make([]string, 0, len(cfg.Keys))
	for name, value := range cfg.Keys {
		if strings.TrimSpace(value) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	keys := make([]apiKey, 0, len(names))
	for _, name := range names {
		keys = append(keys, apiKey{name: name, hash: sha256.Sum256([]byte(strings.TrimSpace(cfg.Keys[name])))})
	}
	return &APIKeyAuthenticator{header: cfg.Header, keys: keys}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(MethodAPIKey)
}

// Len returns the number of usable keys.
func (a *APIKeyAuthenticator) Len() int {
	return len(a.keys)
}

// Supports reports whether the request carries the key header.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return r.Header.Get(a.header) != ""
}

// Authenticate compares the presented key against every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	presented := strings.TrimSpace(r.Header.Get(a.header))
	if presented == "" {
		return nil, ErrMissingCredentials
	}
	sum := sha256.Sum256([]byte(presented))

	match := -1
	for i := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], a.keys[i].hash[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Principal: a.keys[match].name,
		Method:    MethodAPIKey,
		Claims:    map[string]any{"key_id": a.keys[match].name},
	}, nil
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)

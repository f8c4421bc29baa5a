package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSConfig configures the JWKS key provider.
type JWKSConfig struct {
	// URL is the JWKS document location.
	URL string

	// CacheTTL is how long fetched keys are trusted before a refetch.
	// Default: 1 hour
	CacheTTL time.Duration

	// Client fetches the document.
	// Default: a client with a 10 second timeout
	Client *http.Client
}

// JWKSKeyProvider serves RSA verification keys from a JWKS endpoint.
// Concurrent refreshes share one fetch, and keys from the last good fetch
// keep working while the endpoint is down.
type JWKSKeyProvider struct {
	config JWKSConfig
	group  singleflight.Group
	now    func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSKeyProvider creates a JWKS key provider. Keys are fetched lazily.
func NewJWKSKeyProvider(cfg JWKSConfig) *JWKSKeyProvider {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeyProvider{
		config: cfg,
		now:    time.Now,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the key for keyID. An empty keyID matches only when the
// set holds exactly one key. A cache miss or an expired set triggers a
// refetch.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	p.mu.RLock()
	fresh := !p.fetchedAt.IsZero() && p.now().Sub(p.fetchedAt) < p.config.CacheTTL
	key := p.lookupLocked(keyID)
	p.mu.RUnlock()

	if fresh && key != nil {
		return key, nil
	}

	_, err, _ := p.group.Do("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})

	p.mu.RLock()
	key = p.lookupLocked(keyID)
	p.mu.RUnlock()

	switch {
	case key != nil:
		return key, nil
	case err != nil:
		return nil, err
	default:
		return nil, ErrKeyNotFound
	}
}

func (p *JWKSKeyProvider) lookupLocked(keyID string) *rsa.PublicKey {
	if keyID != "" {
		return p.keys[keyID]
	}
	if len(p.keys) == 1 {
		for _, k := range p.keys {
			return k
		}
	}
	return nil
}

func (p *JWKSKeyProvider) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrJWKSFetch, resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrJWKSFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable RSA signing keys", ErrJWKSFetch)
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return nil
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.N == "" || k.E == "" {
		return nil, errors.New("missing modulus or exponent")
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 2 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwksServer struct {
	*httptest.Server
	fetches atomic.Int32
	down    atomic.Bool
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *jwksServer {
	t.Helper()
	doc := jwksDocument{}
	for kid, k := range keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
		})
	}
	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		if s.down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(s.Close)
	return s
}

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return k
}

func TestJWKSKeyProvider_CachesKeys(t *testing.T) {
	priv := rsaKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &priv.PublicKey})
	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})

	for i := 0; i < 3; i++ {
		key, err := p.GetKey(context.Background(), "k1")
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if pub, ok := key.(*rsa.PublicKey); !ok || pub.N.Cmp(priv.N) != 0 {
			t.Fatalf("GetKey() = %T, want matching *rsa.PublicKey", key)
		}
	}
	if got := srv.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}

	// A single key also answers tokens without a kid.
	if _, err := p.GetKey(context.Background(), ""); err != nil {
		t.Errorf("GetKey(\"\") error = %v", err)
	}
}

func TestJWKSKeyProvider_UnknownKid(t *testing.T) {
	priv := rsaKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &priv.PublicKey})
	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})

	if _, err := p.GetKey(context.Background(), "k2"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("GetKey(k2) error = %v, want %v", err, ErrKeyNotFound)
	}
}

func TestJWKSKeyProvider_ServesStaleKeysWhenDown(t *testing.T) {
	priv := rsaKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &priv.PublicKey})
	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL, CacheTTL: time.Minute})

	if _, err := p.GetKey(context.Background(), "k1"); err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}

	srv.down.Store(true)
	p.now = func() time.Time { return time.Now().Add(time.Hour) }

	if _, err := p.GetKey(context.Background(), "k1"); err != nil {
		t.Errorf("GetKey() with endpoint down error = %v, want stale key", err)
	}
	if got := srv.fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
	if _, err := p.GetKey(context.Background(), "k9"); !errors.Is(err, ErrJWKSFetch) {
		t.Errorf("GetKey(k9) error = %v, want %v", err, ErrJWKSFetch)
	}
}

func TestJWKSKeyProvider_ConcurrentRefreshShared(t *testing.T) {
	priv := rsaKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &priv.PublicKey})
	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.GetKey(context.Background(), "k1"); err != nil {
				t.Errorf("GetKey() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if got := srv.fetches.Load(); got > 20 || got < 1 {
		t.Errorf("fetches = %d, want between 1 and 20", got)
	}
}

func TestJWTAuthenticator_WithJWKS(t *testing.T) {
	priv := rsaKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &priv.PublicKey})
	a := NewJWTAuthenticator(JWTConfig{}, NewJWKSKeyProvider(JWKSConfig{URL: srv.URL}))

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "oncall-bot",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	r := httptest.NewRequest("GET", "/alerts", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	id, err := a.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Principal != "oncall-bot" {
		t.Errorf("Principal = %q, want oncall-bot", id.Principal)
	}
}

func TestJWK_RejectsBadExponent(t *testing.T) {
	k := jwk{Kty: "RSA", N: "AQAB", E: base64.RawURLEncoding.EncodeToString([]byte{1})}
	if _, err := k.rsaPublicKey(); err == nil {
		t.Error("rsaPublicKey() error = nil, want error for exponent 1")
	}
}

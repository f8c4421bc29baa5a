package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/sentimentd/observe"
)

func protected(a Authenticator) http.Handler {
	return Require(a, observe.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PrincipalFromContext(r.Context())))
	}))
}

func TestRequire(t *testing.T) {
	chain := NewChain(
		NewAPIKeyAuthenticator(APIKeyConfig{Keys: map[string]string{"ops": "k-ops"}}),
		NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret)),
	)
	token := signHS256(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
		wantCode   string
	}{
		{"no credentials", nil, http.StatusUnauthorized, "", "UNAUTHORIZED"},
		{"api key", map[string]string{"X-API-Key": "k-ops"}, http.StatusOK, "ops", ""},
		{"bad api key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "", "UNAUTHORIZED"},
		{"jwt", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK, "alice", ""},
		{"bad key falls through to jwt", map[string]string{"X-API-Key": "nope", "Authorization": "Bearer " + token}, http.StatusOK, "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/alerts", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			protected(chain).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				if got := w.Body.String(); got != tt.wantBody {
					t.Errorf("body = %q, want %q", got, tt.wantBody)
				}
				return
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode || body.Error != "Unauthorized" {
				t.Errorf("body = %+v, want code %s", body, tt.wantCode)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("WWW-Authenticate header missing")
			}
		})
	}
}

func TestRequire_NilAuthenticatorAdmitsAll(t *testing.T) {
	w := httptest.NewRecorder()
	protected(nil).ServeHTTP(w, httptest.NewRequest("GET", "/alerts", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

type brokenAuth struct{}

func (brokenAuth) Name() string                { return "broken" }
func (brokenAuth) Supports(*http.Request) bool { return true }
func (brokenAuth) Authenticate(context.Context, *http.Request) (*Identity, error) {
	return nil, errors.New("key store offline")
}

func TestRequire_InternalError(t *testing.T) {
	w := httptest.NewRecorder()
	protected(NewChain(brokenAuth{})).ServeHTTP(w, httptest.NewRequest("GET", "/alerts", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestChain(t *testing.T) {
	c := NewChain(nil, NewAPIKeyAuthenticator(APIKeyConfig{Keys: map[string]string{"ops": "k"}}))
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := c.Authenticate(context.Background(), r); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Authenticate() error = %v, want %v", err, ErrMissingCredentials)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || PrincipalFromContext(ctx) != "" {
		t.Error("empty context returned an identity")
	}
	ctx = WithIdentity(ctx, &Identity{Principal: "ops", Method: MethodAPIKey})
	if got := PrincipalFromContext(ctx); got != "ops" {
		t.Errorf("PrincipalFromContext() = %q, want ops", got)
	}
}

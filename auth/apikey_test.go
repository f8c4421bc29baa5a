package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuthenticator(t *testing.T) {
	a := NewAPIKeyAuthenticator(APIKeyConfig{Keys: map[string]string{
		"ops":     "k-ops-123",
		"oncall":  " k-oncall-456 ",
		"revoked": "",
	}})
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}

	tests := []struct {
		name      string
		key       string
		supports  bool
		principal string
		wantErr   error
	}{
		{"no header", "", false, "", ErrMissingCredentials},
		{"valid", "k-ops-123", true, "ops", nil},
		{"trimmed config value", "k-oncall-456", true, "oncall", nil},
		{"padded header", "  k-ops-123 ", true, "ops", nil},
		{"unknown", "nope", true, "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/alerts", nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			if got := a.Supports(r); got != tt.supports {
				t.Errorf("Supports() = %v, want %v", got, tt.supports)
			}
			id, err := a.Authenticate(context.Background(), r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if id.Principal != tt.principal || id.Method != MethodAPIKey {
				t.Errorf("identity = %s/%s, want %s/api_key", id.Principal, id.Method, tt.principal)
			}
			if id.Claims["key_id"] != tt.principal {
				t.Errorf("key_id = %v, want %s", id.Claims["key_id"], tt.principal)
			}
		})
	}
}

func TestAPIKeyAuthenticator_CustomHeader(t *testing.T) {
	a := NewAPIKeyAuthenticator(APIKeyConfig{Header: "X-Ops-Key", Keys: map[string]string{"ops": "secret"}})
	r := httptest.NewRequest("GET", "/alerts", nil)
	r.Header.Set("X-API-Key", "secret")
	if a.Supports(r) {
		t.Error("Supports() = true for the default header, want false")
	}
	r.Header.Set("X-Ops-Key", "secret")
	if _, err := a.Authenticate(context.Background(), r); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
}

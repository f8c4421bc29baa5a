package auth

import (
	"context"
	"errors"
	"net/http"
)

// Chain tries authenticators in order.
type Chain struct {
	auths []Authenticator
}

// NewChain creates a chain. Nil authenticators are skipped.
func NewChain(auths ...Authenticator) *Chain {
	c := &Chain{}
	for _, a := range auths {
		if a != nil {
			c.auths = append(c.auths, a)
		}
	}
	return c
}

// Len returns the number of authenticators.
func (c *Chain) Len() int {
	return len(c.auths)
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Supports reports whether any authenticator recognizes the request.
func (c *Chain) Supports(r *http.Request) bool {
	for _, a := range c.auths {
		if a.Supports(r) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful identity. When every
// supporting authenticator rejects the caller the last rejection is
// returned; an internal error stops the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	lastErr := ErrMissingCredentials
	for _, a := range c.auths {
		if !a.Supports(r) {
			continue
		}
		id, err := a.Authenticate(ctx, r)
		if err == nil {
			return id, nil
		}
		if !IsRejection(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// IsRejection reports whether err means the caller presented missing or
// bad credentials, as opposed to an internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed)
}

var _ Authenticator = (*Chain)(nil)

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Keyer derives cache keys for inference inputs.
//
// Contract:
// - Determinism: the same model and text always produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(model, text string) string
}

// TextKeyer hashes the whitespace-normalized text with SHA-256.
// Format: sentiment:<model>:<first 16 hex chars of the digest>
type TextKeyer struct{}

// NewTextKeyer creates a TextKeyer.
func NewTextKeyer() *TextKeyer {
	return &TextKeyer{}
}

// Key returns the cache key for text under model. Texts differing only in
// surrounding or repeated whitespace share a key.
func (TextKeyer) Key(model, text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "sentiment:" + model + ":" + hex.EncodeToString(sum[:8])
}

var _ Keyer = TextKeyer{}

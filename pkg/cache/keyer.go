package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer builds cache keys from request payloads. Two requests with the
// same canonical payload must map to the same key.
type Keyer interface {
	// FragmentKey builds a key for a viewport fragment request.
	FragmentKey(payload any) string

	// OverviewKey builds a key for a topological overview request.
	OverviewKey(payload any) string
}

// DefaultKeyer hashes the JSON encoding of the payload with SHA-256. The
// full 64-char hex digest is kept so distinct requests cannot collide.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// FragmentKey returns "fragment:<sha256 of payload JSON>".
func (DefaultKeyer) FragmentKey(payload any) string { return hashKey("fragment", payload) }

// OverviewKey returns "overview:<sha256 of payload JSON>".
func (DefaultKeyer) OverviewKey(payload any) string { return hashKey("overview", payload) }

// ScopedKeyer prepends a prefix to every key of an inner keyer, isolating
// cache namespaces when several graphs share one backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner with a key prefix. A nil inner means the
// default keyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// FragmentKey returns the prefixed inner key.
func (k *ScopedKeyer) FragmentKey(payload any) string {
	return k.prefix + k.inner.FragmentKey(payload)
}

// OverviewKey returns the prefixed inner key.
func (k *ScopedKeyer) OverviewKey(payload any) string {
	return k.prefix + k.inner.OverviewKey(payload)
}

func hashKey(prefix string, payload any) string {
	data, _ := json.Marshal(payload)
	digest := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(digest[:]))
}

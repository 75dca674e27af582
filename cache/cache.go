package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/jonwraymond/reproducible/value"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 4096

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrNilWrapper = errors.New("cache: wrapper is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// The shared error taxonomy, re-exported so store callers need not import value.
var (
	ErrNotFound        = value.ErrNotFound
	ErrIO              = value.ErrIO
	ErrSerialization   = value.ErrSerialization
	ErrDeserialization = value.ErrDeserialization
)

// Store persists wrapped results by cache key.
//
// Contract:
// - Get returns an error wrapping ErrNotFound for an absent key; a cached nil
// or empty value is returned as a wrapper, never conflated with a miss.
// - Set on an existing key overwrites it.
// - IsCached reports presence only; it does not validate the entry.
// - Delete is idempotent.
type Store interface {
	Set(ctx context.Context, key string, w value.Wrapper) error
	Get(ctx context.Context, key string) (value.Wrapper, error)
	IsCached(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Keys become file names in FileStore.
	if strings.ContainsAny(key, "\n\r\x00") {
		return ErrInvalidKey
	}
	return nil
}

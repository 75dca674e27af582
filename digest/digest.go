// Package digest supplies the byte-digest primitives used to fingerprint
// values and function identities.
//
// A Func is any hash with an incremental update API and a fixed output size.
// Fingerprints are rendered as lowercase hexadecimal text. Fingerprints made
// with different functions are not comparable.
package digest

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	godigest "github.com/opencontainers/go-digest"
)

// DefaultChunkSize is the read size used when hashing streams.
const DefaultChunkSize = 64 * 1024

// ErrUnknownFunc is returned by Lookup for an unregistered name.
var ErrUnknownFunc = errors.New("digest: unknown digest function")

// Func produces fixed-length digests from byte sequences.
//
// Contract:
// - Determinism: the same input always produces the same digest within a process
// and across processes for the same Name.
// - Concurrency: New must be safe for concurrent use; returned hashes are not.
type Func interface {
	// Name identifies the function; it is recorded alongside cached fingerprints.
	Name() string

	// New returns a fresh incremental hash.
	New() hash.Hash
}

// algorithmFunc adapts an OCI digest algorithm.
type algorithmFunc struct {
	alg godigest.Algorithm
}

func (f algorithmFunc) Name() string   { return string(f.alg) }
func (f algorithmFunc) New() hash.Hash { return f.alg.Hash() }

type xxhashFunc struct{}

func (xxhashFunc) Name() string   { return "xxhash64" }
func (xxhashFunc) New() hash.Hash { return xxhash.New() }

var (
	// SHA256 is the default digest function.
	SHA256 Func = algorithmFunc{alg: godigest.SHA256}

	// SHA512 trades speed for a longer digest.
	SHA512 Func = algorithmFunc{alg: godigest.SHA512}

	// XXHash64 is a fast non-cryptographic digest for process-local caches.
	XXHash64 Func = xxhashFunc{}

	// Canonical is the function used when none is configured.
	Canonical = SHA256
)

var byName = map[string]Func{
	SHA256.Name():   SHA256,
	SHA512.Name():   SHA512,
	XXHash64.Name(): XXHash64,
}

// Lookup returns the digest function registered under name.
// An empty name selects Canonical.
func Lookup(name string) (Func, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Canonical, nil
	}
	f, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunc, name)
	}
	return f, nil
}

// Sum returns the digest of data.
func Sum(f Func, data []byte) []byte {
	h := f.New()
	h.Write(data)
	return h.Sum(nil)
}

// Hex returns the lowercase hex digest of data.
func Hex(f Func, data []byte) string {
	return hex.EncodeToString(Sum(f, data))
}

// HexParts digests the concatenation of parts without copying them together.
func HexParts(f Func, parts ...[]byte) string {
	h := f.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HexReader digests r, reading chunkSize bytes at a time.
// A chunkSize <= 0 uses DefaultChunkSize.
func HexReader(f Func, r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	h := f.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package value

import "github.com/jonwraymond/reproducible/digest"

// Ignored is a handle to a value that a memoizer passes through to the
// function but leaves out of the cache key. Use it for configuration that
// does not affect the result, such as a server address or a log level.
//
// The value is not copied: when it is a pointer, writes through Value reach
// the original.
type Ignored struct {
	v any
}

// Ignore marks v as excluded from cache keys.
func Ignore(v any) *Ignored {
	return &Ignored{v: v}
}

// IsIgnored reports whether v was produced by Ignore.
func IsIgnored(v any) bool {
	_, ok := v.(*Ignored)
	return ok
}

// Value returns the wrapped value.
func (i *Ignored) Value() any { return i.v }

// Fingerprint is always empty.
func (i *Ignored) Fingerprint(digest.Func) (string, error) { return "", nil }

// Kind returns KindObject; a stored Ignored decodes as a plain Object.
func (i *Ignored) Kind() string { return KindObject }

// MarshalBinary encodes the wrapped value as an Object would.
func (i *Ignored) MarshalBinary() ([]byte, error) {
	return marshalObject(i.v)
}

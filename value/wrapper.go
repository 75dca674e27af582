package value

import (
	"encoding"

	"github.com/jonwraymond/reproducible/digest"
)

// Kinds of the wrappers shipped with this package.
const (
	KindObject = "object"
	KindFile   = "file"
)

// Wrapper is the unit of storage.
//
// Contract:
// - Determinism: Fingerprint returns the same string for the same wrapped state
// and digest function. It must not mutate the wrapped value.
// - Round trip: decoding MarshalBinary output with the Decoder registered for
// Kind yields a wrapper whose Value equals the original.
// - Concurrency: Fingerprint may be called from multiple goroutines.
type Wrapper interface {
	encoding.BinaryMarshaler

	// Value returns the underlying payload.
	Value() any

	// Fingerprint returns a stable identifier of the wrapped content.
	Fingerprint(d digest.Func) (string, error)

	// Kind is the type tag persisted next to the payload.
	Kind() string
}

// Constructor builds the wrapper responsible for a raw value.
type Constructor func(v any) (Wrapper, error)

// Decoder rebuilds a wrapper from a serialized payload.
type Decoder func(data []byte) (Wrapper, error)

// Unwrap returns the payload of a Wrapper, or v itself for raw values.
func Unwrap(v any) any {
	if w, ok := v.(Wrapper); ok {
		return w.Value()
	}
	return v
}

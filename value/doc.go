// Package value turns arbitrary Go values into cache participants.
//
// A Wrapper owns or references a value, computes its fingerprint, and
// serializes it for disk-backed stores. Three variants ship with the package:
//
//   - Object owns any value and encodes it with msgpack, prefixed by its type name.
//   - File references a path (see Path) and fingerprints the file content,
//     recomputing only when the modification time advances.
//   - Ignored is a handle to a value that is passed through to the memoized
//     function but never contributes to a cache key.
//
// The Registry selects the wrapper for a raw value. Registration is explicit
// and ordered: the first matching type wins and unmatched values fall back to
// Object. Other packages add variants with Register and RegisterKind, as
// value/tensor does.
//
// Decoding an Object in a fresh process requires its concrete type to be known.
// Built-in scalars, strings, byte slices and common slices and maps are known
// up front; other types are learned when first encoded, or explicitly through
// RegisterValueType or Register. Values held in interface slots, such as the
// elements of a map[string]any, carry their own type names and decode back to
// the same concrete types.
package value

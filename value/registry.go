package value

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/jonwraymond/reproducible/digest"
)

// Registry maps value types to wrapper constructors and wrapper kinds to
// decoders.
//
// Contract:
// - Ordering: types are matched in insertion order; re-registering a type
// replaces its constructor in place.
// - Fallback: values matching no registered type are wrapped in an Object.
// - Concurrency: safe for concurrent use, though registration is expected to
// happen before first use.
type Registry struct {
	mu       sync.RWMutex
	entries  []typeEntry
	decoders map[string]Decoder
}

type typeEntry struct {
	typ  reflect.Type
	ctor Constructor
}

// NewRegistry returns a registry holding the core registrations: the Object
// and File kinds, and Path values wrapped as File.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: map[string]Decoder{
			KindObject: decodeObject,
			KindFile:   decodeFile,
		},
	}
	r.entries = append(r.entries, typeEntry{typ: reflect.TypeFor[Path](), ctor: newFile})
	return r
}

// Register maps typ to ctor. When typ is an interface type, every value
// implementing it matches.
func (r *Registry) Register(typ reflect.Type, ctor Constructor) error {
	if typ == nil || ctor == nil {
		return ErrInvalidRegistration
	}
	rememberType(typ)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].typ == typ {
			r.entries[i].ctor = ctor
			return nil
		}
	}
	r.entries = append(r.entries, typeEntry{typ: typ, ctor: ctor})
	return nil
}

// RegisterFunc registers ctor for values of type T.
func RegisterFunc[T any](r *Registry, ctor func(T) (Wrapper, error)) error {
	if ctor == nil {
		return ErrInvalidRegistration
	}
	typ := reflect.TypeFor[T]()
	return r.Register(typ, func(v any) (Wrapper, error) {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not %s", ErrSerialization, v, typ)
		}
		return ctor(t)
	})
}

// RegisterKind installs the decoder for wrappers whose Kind is kind.
func (r *Registry) RegisterKind(kind string, dec Decoder) error {
	kind = strings.TrimSpace(kind)
	if kind == "" || dec == nil {
		return ErrInvalidRegistration
	}

	r.mu.Lock()
	r.decoders[kind] = dec
	r.mu.Unlock()
	return nil
}

// Resolve returns the constructor for v's runtime type.
func (r *Registry) Resolve(v any) Constructor {
	if v == nil {
		return newObject
	}
	vt := reflect.TypeOf(v)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.typ == vt || (e.typ.Kind() == reflect.Interface && vt.Implements(e.typ)) {
			return e.ctor
		}
	}
	return newObject
}

// Wrap returns v when it already is a Wrapper, otherwise the wrapper built by
// the constructor Resolve selects.
func (r *Registry) Wrap(v any) (Wrapper, error) {
	if w, ok := v.(Wrapper); ok {
		return w, nil
	}
	return r.Resolve(v)(v)
}

// Fingerprint wraps v and fingerprints it with d.
func (r *Registry) Fingerprint(v any, d digest.Func) (string, error) {
	w, err := r.Wrap(v)
	if err != nil {
		return "", err
	}
	return w.Fingerprint(d)
}

// Decode rebuilds a wrapper of the given kind.
func (r *Registry) Decode(kind string, data []byte) (Wrapper, error) {
	r.mu.RLock()
	dec, ok := r.decoders[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown wrapper kind %q", ErrDeserialization, kind)
	}
	return dec(data)
}

// Kinds returns the registered wrapper kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.decoders))
	for k := range r.decoders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Default is the process-wide registry used by the package-level helpers.
var Default = NewRegistry()

// RegisterType maps typ to ctor in Default.
func RegisterType(typ reflect.Type, ctor Constructor) error {
	return Default.Register(typ, ctor)
}

// Wrap wraps v using Default.
func Wrap(v any) (Wrapper, error) {
	return Default.Wrap(v)
}

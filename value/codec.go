package value

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const nilTypeName = "nil"

// valueTypes maps encoded type names back to Go types for decoding.
var valueTypes = struct {
	sync.RWMutex
	byName map[string]reflect.Type
}{byName: make(map[string]reflect.Type)}

func init() {
	for _, v := range []any{
		false, "", []byte(nil),
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
		[]string(nil), []int(nil), []int64(nil), []float64(nil), []bool(nil), []any(nil),
		map[string]any(nil), map[string]string(nil), map[string]int(nil),
		map[string]int64(nil), map[string]float64(nil), map[string]bool(nil),
		time.Time{}, time.Duration(0),
	} {
		RegisterValueType(v)
	}
}

// TypeName returns the name recorded for t in serialized payloads and
// generic fingerprints. Named types are qualified by their package path.
func TypeName(t reflect.Type) string {
	if t == nil {
		return nilTypeName
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// RegisterValueType makes the concrete type of v decodable by Object.
// Types are also learned when first encoded within a process.
func RegisterValueType(v any) {
	if v == nil {
		return
	}
	rememberType(reflect.TypeOf(v))
}

func rememberType(t reflect.Type) {
	if t == nil || t.Kind() == reflect.Interface {
		return
	}
	name := TypeName(t)

	valueTypes.RLock()
	_, known := valueTypes.byName[name]
	valueTypes.RUnlock()
	if known {
		return
	}

	valueTypes.Lock()
	if _, known := valueTypes.byName[name]; !known {
		valueTypes.byName[name] = t
	}
	valueTypes.Unlock()
}

func lookupType(name string) (reflect.Type, bool) {
	valueTypes.RLock()
	defer valueTypes.RUnlock()
	t, ok := valueTypes.byName[name]
	return t, ok
}

// marshalObject encodes the type name followed by the value body.
func marshalObject(v any) ([]byte, error) {
	t := reflect.TypeOf(v)
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeString(TypeName(t)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if t == nil {
		return buf.Bytes(), nil
	}
	if err := encodeValue(&buf, enc, reflect.ValueOf(v), 0); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerialization, TypeName(t), err)
	}
	rememberType(t)
	return buf.Bytes(), nil
}

func unmarshalObject(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	name, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("%w: reading type name: %w", ErrDeserialization, err)
	}
	if name == nilTypeName {
		return nil, nil
	}

	t, ok := lookupType(name)
	if !ok {
		return nil, fmt.Errorf("%w: unregistered value type %q", ErrDeserialization, name)
	}

	out := reflect.New(t).Elem()
	if err := decodeValue(dec, out, 0); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrDeserialization, name, err)
	}
	return out.Interface(), nil
}

package value

import (
	"reflect"
	"strconv"

	"github.com/jonwraymond/reproducible/digest"
)

// Object owns an arbitrary value.
type Object struct {
	v any
}

// NewObject wraps v.
func NewObject(v any) *Object {
	return &Object{v: v}
}

func newObject(v any) (Wrapper, error) {
	return NewObject(v), nil
}

func decodeObject(data []byte) (Wrapper, error) {
	v, err := unmarshalObject(data)
	if err != nil {
		return nil, err
	}
	return NewObject(v), nil
}

// Value returns the wrapped value.
func (o *Object) Value() any { return o.v }

// Kind returns KindObject.
func (o *Object) Kind() string { return KindObject }

// MarshalBinary encodes the value with its type name.
func (o *Object) MarshalBinary() ([]byte, error) {
	return marshalObject(o.v)
}

// Fingerprint dispatches on the value's kind:
//   - numeric scalars render as "<type>:<decimal>" without hashing
//   - strings and byte slices digest their content
//   - everything else digests the type name followed by a canonical encoding
//     in which map entries are sorted
func (o *Object) Fingerprint(d digest.Func) (string, error) {
	return fingerprintRaw(o.v, d)
}

func fingerprintRaw(v any, d digest.Func) (string, error) {
	switch x := v.(type) {
	case string:
		return digest.Hex(d, []byte(x)), nil
	case []byte:
		return digest.Hex(d, x), nil
	}

	if v != nil {
		rv := reflect.ValueOf(v)
		if s, ok := numericText(rv); ok {
			return TypeName(rv.Type()) + ":" + s, nil
		}
		switch {
		case rv.Kind() == reflect.String:
			return digest.Hex(d, []byte(rv.String())), nil
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
			return digest.Hex(d, rv.Bytes()), nil
		}
	}

	body, err := canonicalBytes(v)
	if err != nil {
		return "", err
	}
	return digest.HexParts(d, []byte(TypeName(reflect.TypeOf(v))), body), nil
}

// numericText returns the canonical decimal form of a numeric scalar.
func numericText(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(positiveZero(rv.Float()), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(positiveZero(rv.Float()), 'g', -1, 64), true
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		bits := 128
		if rv.Kind() == reflect.Complex64 {
			bits = 64
		}
		return strconv.FormatComplex(complex(positiveZero(real(c)), positiveZero(imag(c))), 'g', -1, bits), true
	}
	return "", false
}

// positiveZero maps -0 to 0 so values that compare equal fingerprint equally.
func positiveZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

package value

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// maxCanonicalDepth bounds recursion through pointers so cyclic values fail
// instead of overflowing the stack.
const maxCanonicalDepth = 256

var binaryMarshalerType = reflect.TypeFor[encoding.BinaryMarshaler]()

// canonicalBytes returns a deterministic encoding of v used for fingerprints.
// Map entries are ordered by their encoded keys and struct fields, exported or
// not, are written in declaration order. Types implementing
// encoding.BinaryMarshaler contribute their marshaled form.
func canonicalBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, reflect.ValueOf(v), 0); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerialization, TypeName(reflect.TypeOf(v)), err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, rv reflect.Value, depth int) error {
	if depth > maxCanonicalDepth {
		return fmt.Errorf("value nesting exceeds %d levels", maxCanonicalDepth)
	}
	if !rv.IsValid() {
		buf.WriteByte('n')
		return nil
	}

	if rv.Type().Implements(binaryMarshalerType) && rv.CanInterface() {
		if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
			buf.WriteByte('n')
			return nil
		}
		data, err := rv.Interface().(encoding.BinaryMarshaler).MarshalBinary()
		if err != nil {
			return err
		}
		buf.WriteByte('B')
		writeBytes(buf, data)
		return nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		buf.WriteByte('b')
		if rv.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteByte('i')
		buf.Write(binary.AppendVarint(nil, rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteByte('u')
		buf.Write(binary.AppendUvarint(nil, rv.Uint()))
	case reflect.Float32, reflect.Float64:
		buf.WriteByte('f')
		buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(positiveZero(rv.Float()))))
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		buf.WriteByte('c')
		buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(positiveZero(real(c)))))
		buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(positiveZero(imag(c)))))
	case reflect.String:
		buf.WriteByte('s')
		writeBytes(buf, []byte(rv.String()))
	case reflect.Slice:
		if rv.IsNil() {
			buf.WriteByte('n')
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf.WriteByte('x')
			writeBytes(buf, rv.Bytes())
			return nil
		}
		return writeList(buf, rv, depth)
	case reflect.Array:
		return writeList(buf, rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			buf.WriteByte('n')
			return nil
		}
		return writeMap(buf, rv, depth)
	case reflect.Struct:
		t := rv.Type()
		buf.WriteByte('t')
		buf.Write(binary.AppendUvarint(nil, uint64(t.NumField())))
		for i := 0; i < t.NumField(); i++ {
			writeBytes(buf, []byte(t.Field(i).Name))
			if err := writeCanonical(buf, rv.Field(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteByte('n')
			return nil
		}
		buf.WriteByte('p')
		return writeCanonical(buf, rv.Elem(), depth+1)
	case reflect.Interface:
		if rv.IsNil() {
			buf.WriteByte('n')
			return nil
		}
		elem := rv.Elem()
		buf.WriteByte('e')
		writeBytes(buf, []byte(TypeName(elem.Type())))
		return writeCanonical(buf, elem, depth+1)
	default:
		return fmt.Errorf("unsupported kind %s", rv.Kind())
	}
	return nil
}

func writeList(buf *bytes.Buffer, rv reflect.Value, depth int) error {
	buf.WriteByte('l')
	buf.Write(binary.AppendUvarint(nil, uint64(rv.Len())))
	for i := 0; i < rv.Len(); i++ {
		if err := writeCanonical(buf, rv.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func writeMap(buf *bytes.Buffer, rv reflect.Value, depth int) error {
	type entry struct {
		key, val []byte
	}
	entries := make([]entry, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		var kb, vb bytes.Buffer
		if err := writeCanonical(&kb, iter.Key(), depth+1); err != nil {
			return err
		}
		if err := writeCanonical(&vb, iter.Value(), depth+1); err != nil {
			return err
		}
		entries = append(entries, entry{key: kb.Bytes(), val: vb.Bytes()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	buf.WriteByte('m')
	buf.Write(binary.AppendUvarint(nil, uint64(len(entries))))
	for _, e := range entries {
		buf.Write(e.key)
		buf.Write(e.val)
	}
	return nil
}

func writeBytes(buf *bytes.Buffer, p []byte) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(p))))
	buf.Write(p)
}

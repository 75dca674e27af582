package value

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	binaryUnmarshalerType = reflect.TypeFor[encoding.BinaryUnmarshaler]()
	customEncoderType     = reflect.TypeFor[msgpack.CustomEncoder]()
	customDecoderType     = reflect.TypeFor[msgpack.CustomDecoder]()
)

// binaryCodable reports whether t round-trips through MarshalBinary and
// UnmarshalBinary. time.Time takes this path so its zone offset survives.
func binaryCodable(t reflect.Type) bool {
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface &&
		t.Implements(binaryMarshalerType) && reflect.PointerTo(t).Implements(binaryUnmarshalerType)
}

func customCodable(t reflect.Type) bool {
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface &&
		t.Implements(customEncoderType) && reflect.PointerTo(t).Implements(customDecoderType)
}

// encodeValue writes rv using msgpack primitives. A value held in an
// interface is written as a [type name, body] pair so decoding rebuilds
// its concrete type instead of msgpack's generic one.
func encodeValue(buf *bytes.Buffer, enc *msgpack.Encoder, rv reflect.Value, depth int) error {
	if depth > maxCanonicalDepth {
		return fmt.Errorf("value nesting exceeds %d levels", maxCanonicalDepth)
	}
	t := rv.Type()

	switch {
	case binaryCodable(t):
		data, err := rv.Interface().(encoding.BinaryMarshaler).MarshalBinary()
		if err != nil {
			return err
		}
		return enc.EncodeBytes(data)
	case customCodable(t):
		return enc.Encode(rv.Interface())
	}

	switch t.Kind() {
	case reflect.Bool:
		return enc.EncodeBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return enc.EncodeInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return enc.EncodeUint(rv.Uint())
	case reflect.Float32:
		return enc.EncodeFloat32(float32(rv.Float()))
	case reflect.Float64:
		return enc.EncodeFloat64(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeFloat64(real(c)); err != nil {
			return err
		}
		return enc.EncodeFloat64(imag(c))
	case reflect.String:
		return enc.EncodeString(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return enc.EncodeNil()
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return enc.EncodeBytes(rv.Bytes())
		}
		return encodeList(buf, enc, rv, depth)
	case reflect.Array:
		return encodeList(buf, enc, rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			return enc.EncodeNil()
		}
		return encodeMap(buf, enc, rv, depth)
	case reflect.Struct:
		fields := structFields(t)
		if err := enc.EncodeMapLen(len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			if err := enc.EncodeString(f.Name); err != nil {
				return err
			}
			if err := encodeValue(buf, enc, rv.FieldByIndex(f.Index), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			return enc.EncodeNil()
		}
		return encodeValue(buf, enc, rv.Elem(), depth+1)
	case reflect.Interface:
		if rv.IsNil() {
			return enc.EncodeNil()
		}
		elem := rv.Elem()
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeString(TypeName(elem.Type())); err != nil {
			return err
		}
		rememberType(elem.Type())
		return encodeValue(buf, enc, elem, depth+1)
	default:
		return fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

func encodeList(buf *bytes.Buffer, enc *msgpack.Encoder, rv reflect.Value, depth int) error {
	if err := enc.EncodeArrayLen(rv.Len()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := encodeValue(buf, enc, rv.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// encodeMap orders entries by their encoded keys so equal maps encode
// identically.
func encodeMap(buf *bytes.Buffer, enc *msgpack.Encoder, rv reflect.Value, depth int) error {
	type entry struct {
		key, val []byte
	}
	entries := make([]entry, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		var kb, vb bytes.Buffer
		if err := encodeValue(&kb, msgpack.NewEncoder(&kb), iter.Key(), depth+1); err != nil {
			return err
		}
		if err := encodeValue(&vb, msgpack.NewEncoder(&vb), iter.Value(), depth+1); err != nil {
			return err
		}
		entries = append(entries, entry{key: kb.Bytes(), val: vb.Bytes()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	if err := enc.EncodeMapLen(len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		buf.Write(e.key)
		buf.Write(e.val)
	}
	return nil
}

// decodeValue fills the settable rv from the stream written by encodeValue.
func decodeValue(dec *msgpack.Decoder, rv reflect.Value, depth int) error {
	if depth > maxCanonicalDepth {
		return fmt.Errorf("value nesting exceeds %d levels", maxCanonicalDepth)
	}
	t := rv.Type()

	switch {
	case binaryCodable(t):
		data, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		return rv.Addr().Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(data)
	case customCodable(t):
		return dec.Decode(rv.Addr().Interface())
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		if rv.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		if rv.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		rv.SetFloat(f)
	case reflect.Complex64, reflect.Complex128:
		if n, err := dec.DecodeArrayLen(); err != nil {
			return err
		} else if n != 2 {
			return fmt.Errorf("complex value has %d parts", n)
		}
		re, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		im, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		rv.SetComplex(complex(re, im))
	case reflect.String:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		rv.SetString(s)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := dec.DecodeBytes()
			if err != nil {
				return err
			}
			if b != nil {
				rv.Set(reflect.ValueOf(b).Convert(t))
			}
			return nil
		}
		n, err := dec.DecodeArrayLen()
		if err != nil || n < 0 {
			return err
		}
		s := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			if err := decodeValue(dec, s.Index(i), depth+1); err != nil {
				return err
			}
		}
		rv.Set(s)
	case reflect.Array:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		if n != t.Len() {
			return fmt.Errorf("array of %d elements for %s", n, t)
		}
		for i := 0; i < n; i++ {
			if err := decodeValue(dec, rv.Index(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		n, err := dec.DecodeMapLen()
		if err != nil || n < 0 {
			return err
		}
		m := reflect.MakeMapWithSize(t, n)
		for i := 0; i < n; i++ {
			k := reflect.New(t.Key()).Elem()
			if err := decodeValue(dec, k, depth+1); err != nil {
				return err
			}
			v := reflect.New(t.Elem()).Elem()
			if err := decodeValue(dec, v, depth+1); err != nil {
				return err
			}
			m.SetMapIndex(k, v)
		}
		rv.Set(m)
	case reflect.Struct:
		n, err := dec.DecodeMapLen()
		if err != nil || n < 0 {
			return err
		}
		byName := make(map[string][]int)
		for _, f := range structFields(t) {
			byName[f.Name] = f.Index
		}
		for i := 0; i < n; i++ {
			name, err := dec.DecodeString()
			if err != nil {
				return err
			}
			index, ok := byName[name]
			if !ok {
				if err := dec.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := decodeValue(dec, rv.FieldByIndex(index), depth+1); err != nil {
				return err
			}
		}
	case reflect.Pointer:
		if isNil, err := peekNil(dec); err != nil || isNil {
			return err
		}
		p := reflect.New(t.Elem())
		if err := decodeValue(dec, p.Elem(), depth+1); err != nil {
			return err
		}
		rv.Set(p)
	case reflect.Interface:
		if isNil, err := peekNil(dec); err != nil || isNil {
			return err
		}
		if n, err := dec.DecodeArrayLen(); err != nil {
			return err
		} else if n != 2 {
			return fmt.Errorf("interface value has %d parts", n)
		}
		name, err := dec.DecodeString()
		if err != nil {
			return err
		}
		et, ok := lookupType(name)
		if !ok {
			return fmt.Errorf("unregistered value type %q", name)
		}
		if !et.AssignableTo(t) {
			return fmt.Errorf("%s is not assignable to %s", name, t)
		}
		v := reflect.New(et).Elem()
		if err := decodeValue(dec, v, depth+1); err != nil {
			return err
		}
		rv.Set(v)
	default:
		return fmt.Errorf("unsupported kind %s", t.Kind())
	}
	return nil
}

// peekNil consumes a nil marker if one is next.
func peekNil(dec *msgpack.Decoder) (bool, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return false, err
	}
	if c != msgpcode.Nil {
		return false, nil
	}
	return true, dec.DecodeNil()
}

type fieldInfo struct {
	Name  string
	Index []int
}

// structFields lists the exported fields of t, honoring msgpack tag names
// and "-".
func structFields(t reflect.Type) []fieldInfo {
	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("msgpack"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, fieldInfo{Name: name, Index: f.Index})
	}
	return fields
}

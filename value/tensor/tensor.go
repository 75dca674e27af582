// Package tensor registers a wrapper for dense float64 arrays.
//
// It shows how a numerical type plugs into the value registry: a Tensor is
// fingerprinted over its shape and data, so a reshaped array never collides
// with the original, and stored as a compact little-endian payload.
package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/jonwraymond/reproducible/digest"
	"github.com/jonwraymond/reproducible/value"
)

// Kind is the wrapper kind persisted for tensors.
const Kind = "tensor"

// ErrShape indicates a shape that does not match the data length.
var ErrShape = errors.New("tensor: shape does not match data")

// Tensor is a dense row-major array.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New returns a tensor after checking that shape covers data exactly.
func New(data []float64, shape ...int) (Tensor, error) {
	t := Tensor{Shape: shape, Data: data}
	if err := t.validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Reshape returns a tensor sharing data under a new shape.
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	return New(t.Data, shape...)
}

// Equal reports element-wise and shape equality.
func (t Tensor) Equal(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range t.Data {
		if math.Float64bits(t.Data[i]) != math.Float64bits(o.Data[i]) {
			return false
		}
	}
	return true
}

func (t Tensor) validate() error {
	n := 1
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d", ErrShape, d)
		}
		n *= d
	}
	if n != len(t.Data) {
		return fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShape, t.Shape, n, len(t.Data))
	}
	return nil
}

// Wrapper wraps a Tensor.
type Wrapper struct {
	t Tensor
}

// Wrap validates t and wraps it.
func Wrap(t Tensor) (value.Wrapper, error) {
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", value.ErrSerialization, err)
	}
	return &Wrapper{t: t}, nil
}

// Value returns the Tensor.
func (w *Wrapper) Value() any { return w.t }

// Kind returns Kind.
func (w *Wrapper) Kind() string { return Kind }

// Fingerprint digests the kind, the shape and the raw element bits.
func (w *Wrapper) Fingerprint(d digest.Func) (string, error) {
	payload, err := w.MarshalBinary()
	if err != nil {
		return "", err
	}
	return digest.HexParts(d, []byte(Kind), payload), nil
}

// MarshalBinary encodes rank, dimensions and elements as little-endian words.
func (w *Wrapper) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 8*(1+len(w.t.Shape)+len(w.t.Data)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(w.t.Shape)))
	for _, dim := range w.t.Shape {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(dim))
	}
	for _, x := range w.t.Data {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	return buf, nil
}

// Decode rebuilds a tensor wrapper from MarshalBinary output.
func Decode(data []byte) (value.Wrapper, error) {
	if len(data) < 8 || len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: tensor payload of %d bytes", value.ErrDeserialization, len(data))
	}
	words := len(data) / 8
	word := func(i int) uint64 { return binary.LittleEndian.Uint64(data[8*i:]) }

	rank := word(0)
	if rank > uint64(words-1) {
		return nil, fmt.Errorf("%w: tensor rank %d exceeds payload", value.ErrDeserialization, rank)
	}

	shape := make([]int, rank)
	for i := range shape {
		shape[i] = int(word(1 + i))
	}
	elems := make([]float64, words-1-int(rank))
	for i := range elems {
		elems[i] = math.Float64frombits(word(1 + int(rank) + i))
	}

	t := Tensor{Shape: shape, Data: elems}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", value.ErrDeserialization, err)
	}
	return &Wrapper{t: t}, nil
}

// Register installs the tensor constructor and decoder in r.
func Register(r *value.Registry) error {
	if err := value.RegisterFunc(r, Wrap); err != nil {
		return err
	}
	return r.RegisterKind(Kind, Decode)
}

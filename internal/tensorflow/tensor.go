package tensorflow

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Dims returns the tensor dimensions. A scalar has none.
func (t *TensorProto) Dims() []int {
	if t.Shape == nil {
		return nil
	}
	dims := make([]int, len(t.Shape.Dims))
	for i, d := range t.Shape.Dims {
		dims[i] = int(d)
	}
	return dims
}

// NumElements returns the product of the dimensions (1 for a scalar).
func (t *TensorProto) NumElements() int {
	n := 1
	for _, d := range t.Dims() {
		n *= d
	}
	return n
}

// Floats decodes the tensor as float32 values.
//
// Values come from tensor_content when present, otherwise from the typed value field. A typed
// field shorter than the element count is padded with its last value, as TensorFlow does for
// splat constants.
func (t *TensorProto) Floats() ([]float32, error) {
	n := t.NumElements()
	out := make([]float32, n)
	if len(t.Content) > 0 {
		return decodeFloatContent(t.DType, t.Content, out)
	}
	switch t.DType {
	case DTFloat:
		fill(out, t.FloatVal, func(v float32) float32 { return v })
	case DTHalf:
		fill(out, t.HalfVal, func(v int32) float32 { return float16.Frombits(uint16(v)).Float32() })
	case DTDouble:
		fill(out, t.DoubleVal, func(v float64) float32 { return float32(v) })
	case DTInt32:
		fill(out, t.IntVal, func(v int32) float32 { return float32(v) })
	case DTInt64:
		fill(out, t.Int64Val, func(v int64) float32 { return float32(v) })
	default:
		return nil, errors.Errorf("tensorflow: cannot decode %s tensor as floats", t.DType)
	}
	return out, nil
}

// Ints decodes an integer tensor, such as a shape or axis operand.
func (t *TensorProto) Ints() ([]int64, error) {
	n := t.NumElements()
	out := make([]int64, n)
	if len(t.Content) > 0 {
		switch t.DType {
		case DTInt32:
			if len(t.Content) != 4*n {
				return nil, sizeErr(t, 4)
			}
			for i := range out {
				out[i] = int64(int32(binary.LittleEndian.Uint32(t.Content[4*i:])))
			}
		case DTInt64:
			if len(t.Content) != 8*n {
				return nil, sizeErr(t, 8)
			}
			for i := range out {
				out[i] = int64(binary.LittleEndian.Uint64(t.Content[8*i:]))
			}
		default:
			return nil, errors.Errorf("tensorflow: cannot decode %s tensor as ints", t.DType)
		}
		return out, nil
	}
	switch t.DType {
	case DTInt32:
		fill(out, t.IntVal, func(v int32) int64 { return int64(v) })
	case DTInt64:
		fill(out, t.Int64Val, func(v int64) int64 { return v })
	default:
		return nil, errors.Errorf("tensorflow: cannot decode %s tensor as ints", t.DType)
	}
	return out, nil
}

func decodeFloatContent(dt DataType, content []byte, out []float32) ([]float32, error) {
	n := len(out)
	switch dt {
	case DTFloat:
		if len(content) != 4*n {
			return nil, errors.Errorf("tensorflow: %d content bytes for %d floats", len(content), n)
		}
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(content[4*i:]))
		}
	case DTHalf:
		if len(content) != 2*n {
			return nil, errors.Errorf("tensorflow: %d content bytes for %d halves", len(content), n)
		}
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(content[2*i:])).Float32()
		}
	case DTDouble:
		if len(content) != 8*n {
			return nil, errors.Errorf("tensorflow: %d content bytes for %d doubles", len(content), n)
		}
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(content[8*i:])))
		}
	default:
		return nil, errors.Errorf("tensorflow: cannot decode %s content as floats", dt)
	}
	return out, nil
}

func sizeErr(t *TensorProto, width int) error {
	return errors.Errorf("tensorflow: %d content bytes for %d %s elements of %d bytes",
		len(t.Content), t.NumElements(), t.DType, width)
}

// fill copies vals into out, repeating the last value. Empty vals leave zeros.
func fill[S, D any](out []D, vals []S, conv func(S) D) {
	if len(vals) == 0 {
		return
	}
	for i := range out {
		if i < len(vals) {
			out[i] = conv(vals[i])
		} else {
			out[i] = conv(vals[len(vals)-1])
		}
	}
}

// FloatTensor builds a DT_FLOAT tensor with raw content.
func FloatTensor(dims []int64, values []float32) *TensorProto {
	content := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(content[4*i:], math.Float32bits(v))
	}
	return &TensorProto{DType: DTFloat, Shape: &TensorShape{Dims: dims}, Content: content}
}

// HalfTensor builds a DT_HALF tensor with raw content.
func HalfTensor(dims []int64, values []float32) *TensorProto {
	content := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(content[2*i:], float16.Fromfloat32(v).Bits())
	}
	return &TensorProto{DType: DTHalf, Shape: &TensorShape{Dims: dims}, Content: content}
}

// IntTensor builds a DT_INT32 tensor using int_val.
func IntTensor(dims []int64, values ...int32) *TensorProto {
	return &TensorProto{DType: DTInt32, Shape: &TensorShape{Dims: dims}, IntVal: values}
}

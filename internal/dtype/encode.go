package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/h5cat/internal/message"
)

// Encode converts src, a numeric or string value or a flat slice of them,
// into raw bytes laid out for dt.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}

	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		one := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
		one.Index(0).Set(v)
		v = one
	}

	size := int(dt.Size)
	out := make([]byte, v.Len()*size)
	for i := 0; i < v.Len(); i++ {
		if err := encodeOne(dt, v.Index(i), out[i*size:(i+1)*size]); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func encodeOne(dt *message.Datatype, v reflect.Value, dst []byte) error {
	order := ByteOrder(dt)
	var bits uint64

	switch dt.Class {
	case message.ClassFixedPoint:
		switch {
		case v.CanInt():
			bits = uint64(v.Int())
		case v.CanUint():
			bits = v.Uint()
		case v.CanFloat():
			bits = uint64(int64(v.Float()))
		default:
			return fmt.Errorf("cannot encode %v as integer", v.Type())
		}
	case message.ClassFloatPoint:
		var f float64
		switch {
		case v.CanFloat():
			f = v.Float()
		case v.CanInt():
			f = float64(v.Int())
		case v.CanUint():
			f = float64(v.Uint())
		default:
			return fmt.Errorf("cannot encode %v as float", v.Type())
		}
		if dt.Size == 4 {
			bits = uint64(math.Float32bits(float32(f)))
		} else {
			bits = math.Float64bits(f)
		}
	case message.ClassString:
		if v.Kind() != reflect.String {
			return fmt.Errorf("cannot encode %v as string", v.Type())
		}
		n := copy(dst, v.String())
		if dt.StringPadding == message.PadSpacePad {
			for i := n; i < len(dst); i++ {
				dst[i] = ' '
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported datatype class for encoding: %d", dt.Class)
	}

	switch len(dst) {
	case 1:
		dst[0] = byte(bits)
	case 2:
		order.PutUint16(dst, uint16(bits))
	case 4:
		order.PutUint32(dst, uint32(bits))
	case 8:
		order.PutUint64(dst, bits)
	default:
		return fmt.Errorf("unsupported element size %d", len(dst))
	}
	return nil
}

package dtype

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/heap"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// Convert decodes n elements of raw into dest. See ConvertWithReader.
func Convert(dt *message.Datatype, raw []byte, n uint64, dest any) error {
	return ConvertWithReader(dt, raw, n, dest, nil)
}

// ConvertWithReader decodes n elements of raw into dest, which must point
// to a slice of a numeric kind, a []string, or an any that receives
// the natural slice ([]int64, []uint64, []float64 or []string). r resolves
// variable-length strings held in the global heap.
//
// Integer, enum, bitfield, float, fixed string and variable-length string
// classes are supported.
func ConvertWithReader(dt *message.Datatype, raw []byte, n uint64, dest any, r *binary.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	out := reflect.ValueOf(dest)
	if out.Kind() != reflect.Ptr || out.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer")
	}
	out = out.Elem()

	dec, err := newDecoder(dt, r)
	if err != nil {
		return err
	}
	size := uint64(dec.size)
	if n > 0 && (size == 0 || n > uint64(len(raw))/size) {
		return fmt.Errorf("%d bytes cannot hold %d elements of %d bytes", len(raw), n, size)
	}

	if out.Kind() == reflect.Interface {
		all := reflect.MakeSlice(reflect.SliceOf(dec.natural), int(n), int(n))
		for i := uint64(0); i < n; i++ {
			v, err := dec.decode(raw[i*size : (i+1)*size])
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			all.Index(int(i)).Set(v)
		}
		out.Set(all)
		return nil
	}

	if out.Kind() != reflect.Slice {
		return fmt.Errorf("dest must point to a slice, got %v", out.Type())
	}
	if out.Len() < int(n) {
		out.Set(reflect.MakeSlice(out.Type(), int(n), int(n)))
	}
	elem := out.Type().Elem()
	if !assignable(dec.natural, elem) {
		return fmt.Errorf("cannot convert %v elements to %v", dec.natural, elem)
	}
	for i := uint64(0); i < n; i++ {
		v, err := dec.decode(raw[i*size : (i+1)*size])
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(int(i)).Set(v.Convert(elem))
	}
	return nil
}

// assignable allows numeric-to-numeric and string-to-string conversions.
func assignable(from, to reflect.Type) bool {
	if from.Kind() == reflect.String || to.Kind() == reflect.String {
		return from.Kind() == to.Kind()
	}
	return from.ConvertibleTo(to)
}

var (
	int64Type   = reflect.TypeOf(int64(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float64Type = reflect.TypeOf(float64(0))
	stringType  = reflect.TypeOf("")
)

type decoder struct {
	size    int
	natural reflect.Type
	decode  func(b []byte) (reflect.Value, error)
}

func newDecoder(dt *message.Datatype, r *binary.Reader) (*decoder, error) {
	order := ByteOrder(dt)
	size := int(dt.Size)

	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield:
		signed := dt.Signed
		if size != 1 && size != 2 && size != 4 && size != 8 {
			return nil, fmt.Errorf("unsupported integer size: %d", size)
		}
		if signed {
			return &decoder{size, int64Type, func(b []byte) (reflect.Value, error) {
				return reflect.ValueOf(signExtend(readUint(order, b), size)), nil
			}}, nil
		}
		return &decoder{size, uint64Type, func(b []byte) (reflect.Value, error) {
			return reflect.ValueOf(readUint(order, b)), nil
		}}, nil

	case message.ClassFloatPoint:
		switch size {
		case 4:
			return &decoder{size, float64Type, func(b []byte) (reflect.Value, error) {
				return reflect.ValueOf(float64(math.Float32frombits(order.Uint32(b)))), nil
			}}, nil
		case 8:
			return &decoder{size, float64Type, func(b []byte) (reflect.Value, error) {
				return reflect.ValueOf(math.Float64frombits(order.Uint64(b))), nil
			}}, nil
		}
		return nil, fmt.Errorf("unsupported float size: %d", size)

	case message.ClassString:
		return &decoder{size, stringType, func(b []byte) (reflect.Value, error) {
			return reflect.ValueOf(fixedString(dt, b)), nil
		}}, nil

	case message.ClassVarLen:
		if !dt.IsVarLenString {
			return nil, fmt.Errorf("variable-length sequences are not supported")
		}
		return varLenStrings(r), nil

	default:
		return nil, fmt.Errorf("unsupported datatype class for conversion: %d", dt.Class)
	}
}

func readUint(order stdbinary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}

func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*size
	return int64(v<<shift) >> shift
}

// fixedString cuts at the first NUL and drops trailing space padding.
func fixedString(dt *message.Datatype, b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if dt.StringPadding == message.PadSpacePad {
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}

// varLenStrings decodes global heap references: a 4-byte length followed by
// a heap ID. Heap collections are read once per conversion.
func varLenStrings(r *binary.Reader) *decoder {
	cfg := binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}
	if r != nil {
		cfg = r.Config()
	}
	cache := make(map[uint64]*heap.GlobalHeap)

	return &decoder{4 + cfg.OffsetSize + 4, stringType, func(b []byte) (reflect.Value, error) {
		id, err := heap.DecodeID(b[4:], cfg)
		if err != nil {
			return reflect.Value{}, err
		}
		if id.Collection == 0 {
			return reflect.ValueOf(""), nil
		}
		if r == nil {
			return reflect.Value{}, fmt.Errorf("global heap at 0x%x needs a file reader", id.Collection)
		}
		gh, ok := cache[id.Collection]
		if !ok {
			if gh, err = heap.ReadGlobalHeap(r, id.Collection); err != nil {
				return reflect.Value{}, err
			}
			cache[id.Collection] = gh
		}
		obj, err := gh.Object(id.Index)
		if err != nil {
			return reflect.Value{}, err
		}
		// The stored length excludes any terminator; trim one anyway.
		if n := int(cfg.ByteOrder.Uint32(b[:4])); n < len(obj) {
			obj = obj[:n]
		}
		return reflect.ValueOf(string(bytes.TrimRight(obj, "\x00"))), nil
	}}
}

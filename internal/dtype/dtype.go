// Package dtype maps HDF5 datatypes to Go values and back.
package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/h5cat/internal/message"
)

// ByteOrder returns the byte order of a numeric datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsNumeric reports whether dt holds integers or floating-point numbers.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}

// DataSize returns the bytes needed for n elements of dt.
func DataSize(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}

// FromGoType returns the little-endian HDF5 datatype for a Go numeric kind.
// Slice, array and pointer types resolve to their element type. Strings
// have no fixed size until the values are known; see FixedStrings.
func FromGoType(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	default:
		return nil, fmt.Errorf("unsupported Go type: %v", t)
	}
}

// FixedStrings encodes strs as null-terminated fixed-length ASCII strings
// sized to the longest element.
func FixedStrings(strs []string) (*message.Datatype, []byte) {
	width := 1
	for _, s := range strs {
		width = max(width, len(s)+1)
	}
	data := make([]byte, len(strs)*width)
	for i, s := range strs {
		copy(data[i*width:], s)
	}
	return message.NewStringDatatype(uint32(width), message.PadNullTerm, message.CharsetASCII), data
}

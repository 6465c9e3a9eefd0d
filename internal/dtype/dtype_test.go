package dtype

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/message"
)

// Every numeric Go type the writer accepts must read back as float64.
func TestNumericToFloat64(t *testing.T) {
	tests := []struct {
		name string
		src  any
	}{
		{"int8", []int8{-3, 0, 7}},
		{"uint8", []uint8{0, 128, 255}},
		{"int16", []int16{-300, 0, 300}},
		{"uint16", []uint16{1, 2, 65535}},
		{"int32", []int32{-70000, 0, 70000}},
		{"uint32", []uint32{0, 1, 1 << 31}},
		{"int64", []int64{-1 << 40, 0, 1 << 40}},
		{"uint64", []uint64{0, 42, 1 << 50}},
		{"float32", []float32{-1.5, 0, 2.25}},
		{"float64", []float64{-1.5, 0, 1e300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, err := FromGoType(reflect.TypeOf(tt.src))
			require.NoError(t, err)
			assert.True(t, IsNumeric(dt))

			raw, err := Encode(dt, tt.src)
			require.NoError(t, err)
			assert.EqualValues(t, DataSize(dt, 3), len(raw))

			var got []float64
			require.NoError(t, Convert(dt, raw, 3, &got))

			src := reflect.ValueOf(tt.src)
			require.Len(t, got, src.Len())
			for i := range got {
				want := src.Index(i).Convert(reflect.TypeOf(float64(0))).Float()
				assert.Equal(t, want, got[i], "element %d", i)
			}
		})
	}
}

func TestConvertBigEndian(t *testing.T) {
	dt := message.NewFixedPointDatatype(4, true, message.OrderBE)
	raw := binary.BigEndian.AppendUint32(nil, uint32(0xFFFFFFFE))
	raw = binary.BigEndian.AppendUint32(raw, 9)

	var got []float64
	require.NoError(t, Convert(dt, raw, 2, &got))
	assert.Equal(t, []float64{-2, 9}, got)
	assert.Equal(t, binary.BigEndian, ByteOrder(dt))
}

func TestFixedStrings(t *testing.T) {
	tests := []struct {
		name    string
		padding message.StringPadding
		size    uint32
		in      []string
		want    []string
	}{
		{"null terminated", message.PadNullTerm, 6, []string{"x", "hello"}, []string{"x", "hello"}},
		{"null padded", message.PadNullPad, 4, []string{"ab", "abcd"}, []string{"ab", "abcd"}},
		{"space padded", message.PadSpacePad, 5, []string{"a", "bc"}, []string{"a", "bc"}},
		{"truncated", message.PadNullPad, 3, []string{"abcdef"}, []string{"abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := message.NewStringDatatype(tt.size, tt.padding, message.CharsetASCII)
			assert.False(t, IsNumeric(dt))

			raw, err := Encode(dt, tt.in)
			require.NoError(t, err)

			var got []string
			require.NoError(t, Convert(dt, raw, uint64(len(tt.in)), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := FromGoType(reflect.TypeOf(struct{}{}))
	assert.Error(t, err)

	_, err = Encode(nil, []int32{1})
	assert.Error(t, err)

	var out []float64
	assert.Error(t, Convert(message.NewFloatDatatype(8, message.OrderLE), nil, 0, out))
}

func TestConvertShortBuffer(t *testing.T) {
	dt := message.NewFloatDatatype(8, message.OrderLE)
	var out []float64
	for _, n := range []uint64{2, 1 << 61, 1 << 62} {
		assert.Error(t, Convert(dt, make([]byte, 8), n, &out), "n=%d", n)
	}
	require.NoError(t, Convert(dt, make([]byte, 8), 1, &out))
	assert.Equal(t, []float64{0}, out)
}

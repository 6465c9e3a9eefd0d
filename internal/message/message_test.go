package message

import (
	stdbinary "encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

var cfg = binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}

func parse[T Message](t *testing.T, typ Type, body []byte) T {
	t.Helper()
	msg, err := Parse(typ, body, cfg)
	require.NoError(t, err)
	m, ok := msg.(T)
	require.True(t, ok, "got %T", msg)
	return m
}

func TestParseUnknownKeepsBody(t *testing.T) {
	m := parse[*Unknown](t, Type(0x15), []byte{1, 2, 3})
	assert.Equal(t, Type(0x15), m.Type())
	assert.Equal(t, []byte{1, 2, 3}, m.Data())
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse(TypeSymbolTable, make([]byte, 12), cfg)
	assert.ErrorContains(t, err, "message type 0x11")
}

func TestFillValue(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want []byte
	}{
		{"v2 defined", []byte{2, 1, 1, 1, 2, 0, 0, 0, 0xAB, 0xCD}, []byte{0xAB, 0xCD}},
		{"v2 undefined", []byte{2, 1, 1, 0}, nil},
		{"v3 defined", []byte{3, 0x20, 4, 0, 0, 0, 1, 2, 3, 4}, []byte{1, 2, 3, 4}},
		{"v3 undefined", []byte{3, 0x10}, nil},
		{"v3 zero size", []byte{3, 0x20, 0, 0, 0, 0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parse[*FillValue](t, TypeFillValue, tt.body).Value)
		})
	}

	_, err := Parse(TypeFillValue, []byte{9}, cfg)
	assert.ErrorContains(t, err, "unsupported fill value version 9")
}

func TestFilterPipelineV1(t *testing.T) {
	e := binary.NewEncoder(cfg)
	e.Uint8(1)
	e.Uint8(2)
	e.Zeros(6)
	// deflate, named, one client value padded to eight bytes.
	e.Uint16(FilterDeflate)
	e.Uint16(8)
	e.Uint16(0)
	e.Uint16(1)
	e.Write([]byte("deflate\x00"))
	e.Uint32(6)
	e.Zeros(4)
	// An optional third-party filter without a name.
	e.Uint16(32015)
	e.Uint16(0)
	e.Uint16(1)
	e.Uint16(2)
	e.Uint32(3)
	e.Uint32(0)

	m := parse[*FilterPipeline](t, TypeFilterPipeline, e.Bytes())
	require.Len(t, m.Filters, 2)
	assert.Equal(t, FilterInfo{ID: FilterDeflate, Name: "deflate", ClientData: []uint32{6}}, m.Filters[0])
	assert.Equal(t, []uint32{3, 0}, m.Filters[1].ClientData)
	assert.True(t, m.Filters[1].IsOptional())
}

func TestFilterPipelineV2(t *testing.T) {
	e := binary.NewEncoder(cfg)
	e.Uint8(2)
	e.Uint8(1)
	e.Uint16(FilterShuffle)
	e.Uint16(0)
	e.Uint16(1)
	e.Uint32(8)

	m := parse[*FilterPipeline](t, TypeFilterPipeline, e.Bytes())
	assert.Equal(t, []FilterInfo{{ID: FilterShuffle, ClientData: []uint32{8}}}, m.Filters)
}

func TestLayoutV1Chunked(t *testing.T) {
	e := binary.NewEncoder(cfg)
	e.Uint8(1)
	e.Uint8(3)
	e.Uint8(uint8(LayoutChunked))
	e.Zeros(5)
	e.Offset(4096)
	e.Uint32(10)
	e.Uint32(20)
	e.Uint32(8)

	m := parse[*DataLayout](t, TypeDataLayout, e.Bytes())
	assert.Equal(t, LayoutChunked, m.Class)
	assert.Equal(t, uint64(4096), m.ChunkIndexAddr)
	assert.Equal(t, []uint32{10, 20, 8}, m.ChunkDims)
}

func TestLayoutV4SingleFilteredChunk(t *testing.T) {
	l := NewChunkedLayout([]uint32{300, 2}, 4, ChunkIndexSingleChunk)
	l.FilteredChunkSize = 999
	l.FilterMask = 1
	l.ChunkIndexAddr = 512

	m := parse[*DataLayout](t, TypeDataLayout, Encode(l, cfg))
	assert.Equal(t, []uint32{300, 2, 4}, m.ChunkDims)
	assert.True(t, m.Filtered())
	assert.Equal(t, uint64(999), m.FilteredChunkSize)
	assert.Equal(t, uint32(1), m.FilterMask)
	assert.Equal(t, uint64(512), m.ChunkIndexAddr)
}

func TestLayoutVirtualIsAnError(t *testing.T) {
	_, err := Parse(TypeDataLayout, []byte{4, uint8(LayoutVirtual)}, cfg)
	assert.ErrorContains(t, err, "virtual")
}

func TestLinkLongName(t *testing.T) {
	name := strings.Repeat("n", 300)
	body := Encode(NewHardLink(name, 77), cfg)
	assert.Equal(t, uint8(0x01), body[1], "two-byte name length")

	m := parse[*Link](t, TypeLink, body)
	assert.Equal(t, name, m.Name)
	assert.Equal(t, uint64(77), m.ObjectAddress)
}

func TestLinkInfoDense(t *testing.T) {
	compact := parse[*LinkInfo](t, TypeLinkInfo, Encode(NewLinkInfo(), cfg))
	assert.False(t, compact.Dense())

	e := binary.NewEncoder(cfg)
	e.Uint8(0)
	e.Uint8(0x01)
	e.Uint64(5)
	e.Offset(1024)
	e.Offset(2048)
	dense := parse[*LinkInfo](t, TypeLinkInfo, e.Bytes())
	assert.True(t, dense.Dense())
	assert.Equal(t, uint64(1024), dense.FractalHeapAddr)
}

func TestAttributeV1Padding(t *testing.T) {
	dt := Encode(NewFixedPointDatatype(4, true, OrderLE), cfg)
	ds := Encode(NewDataspace([]uint64{2}, nil), cfg)

	e := binary.NewEncoder(cfg)
	e.Uint8(1)
	e.Uint8(0)
	e.Uint16(3)
	e.Uint16(uint16(len(dt)))
	e.Uint16(uint16(len(ds)))
	e.Write([]byte("ab\x00"))
	e.Zeros(5)
	e.Write(dt)
	e.Zeros((8 - len(dt)%8) % 8)
	e.Write(ds)
	e.Zeros((8 - len(ds)%8) % 8)
	e.Write([]byte{1, 0, 0, 0, 2, 0, 0, 0})

	m := parse[*Attribute](t, TypeAttribute, e.Bytes())
	assert.Equal(t, "ab", m.Name)
	assert.True(t, m.Datatype.Signed)
	assert.Equal(t, []uint64{2}, m.Dataspace.Dimensions)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, m.Data)
}

func TestDataspaceBytes(t *testing.T) {
	n, err := NewDataspace([]uint64{2, 3}, nil).Bytes(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(48), n)

	huge := NewDataspace([]uint64{1 << 61}, nil)
	assert.Equal(t, uint64(1<<61), huge.NumElements())
	_, err = huge.Bytes(8)
	assert.ErrorContains(t, err, "overflows")

	wide := NewDataspace([]uint64{1 << 32, 1 << 32}, nil)
	assert.Equal(t, uint64(math.MaxUint64), wide.NumElements())

	n, err = NewScalarDataspace().Bytes(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
}

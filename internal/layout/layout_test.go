package layout

import (
	stdbinary "encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

var cfg = binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}

// file is an in-memory file that grows on write.
type file struct{ buf []byte }

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(f.buf) {
		f.buf = append(f.buf, make([]byte, end-len(f.buf))...)
	}
	return copy(f.buf[off:], p), nil
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// allocator hands out addresses after a reserved prefix.
func allocator(next uint64) func(int64) uint64 {
	return func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	}
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}

func roundTrip(t *testing.T, dims []uint64, cdims []uint32) (*message.DataLayout, []byte) {
	t.Helper()
	f := &file{}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	data := sequence(n)

	msg, err := NewChunkWriter(binary.NewWriter(f, cfg), allocator(64)).Write(data, dims, cdims, 1)
	require.NoError(t, err)

	l, err := New(Dataset{
		Layout: msg,
		Space:  message.NewDataspace(dims, nil),
		Type:   message.NewFixedPointDatatype(1, false, message.OrderLE),
	}, binary.NewReader(f, cfg))
	require.NoError(t, err)
	got, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, data, got)
	return msg, got
}

func TestChunkedEdgeChunks(t *testing.T) {
	msg, _ := roundTrip(t, []uint64{5, 7}, []uint32{2, 3})
	assert.Equal(t, message.ChunkIndexFixedArray, msg.ChunkIndexType)
	assert.Equal(t, uint8(10), msg.PageBits)
	assert.Equal(t, []uint32{2, 3, 1}, msg.ChunkDims)
}

func TestChunkedThreeDimensions(t *testing.T) {
	roundTrip(t, []uint64{3, 4, 5}, []uint32{2, 2, 2})
}

func TestSingleChunkIsPadded(t *testing.T) {
	f := &file{}
	msg, err := NewChunkWriter(binary.NewWriter(f, cfg), allocator(0)).Write(sequence(9), []uint64{3, 3}, []uint32{4, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, message.ChunkIndexSingleChunk, msg.ChunkIndexType)
	assert.Len(t, f.buf, 16, "the stored chunk covers the full chunk shape")

	roundTrip(t, []uint64{3, 3}, []uint32{4, 4})
}

func TestImplicitIndex(t *testing.T) {
	// Two 2x2 chunks stored back to back for a 2x4 dataset.
	f := &file{buf: []byte{1, 2, 5, 6, 3, 4, 7, 8}}
	msg := message.NewChunkedLayout([]uint32{2, 2}, 1, message.ChunkIndexImplicit)

	l, err := New(Dataset{
		Layout: msg,
		Space:  message.NewDataspace([]uint64{2, 4}, nil),
		Type:   message.NewFixedPointDatatype(1, false, message.OrderLE),
	}, binary.NewReader(f, cfg))
	require.NoError(t, err)
	got, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestUnallocatedStorageReadsFillValue(t *testing.T) {
	undefined := binary.NewEncoder(cfg).Undefined()
	ds := Dataset{
		Space: message.NewDataspace([]uint64{3}, nil),
		Type:  message.NewFixedPointDatatype(2, false, message.OrderLE),
		Fill:  &message.FillValue{Value: []byte{0xAB, 0xCD}},
	}

	ds.Layout = message.NewContiguousLayout(undefined, 6)
	l, err := New(ds, binary.NewReader(&file{}, cfg))
	require.NoError(t, err)
	got, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD}, got)

	ds.Layout = message.NewChunkedLayout([]uint32{2}, 2, message.ChunkIndexFixedArray)
	ds.Layout.ChunkIndexAddr = undefined
	l, err = New(ds, binary.NewReader(&file{}, cfg))
	require.NoError(t, err)
	got, err = l.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD}, got)

	ds.Fill = nil
	l, err = New(ds, binary.NewReader(&file{}, cfg))
	require.NoError(t, err)
	got, err = l.Read()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 6), got)
}

func TestUnsupportedIndex(t *testing.T) {
	msg := message.NewChunkedLayout([]uint32{2}, 1, message.ChunkIndexType(9))
	msg.ChunkIndexAddr = 0
	l, err := New(Dataset{
		Layout: msg,
		Space:  message.NewDataspace([]uint64{4}, nil),
		Type:   message.NewFixedPointDatatype(1, false, message.OrderLE),
	}, binary.NewReader(&file{}, cfg))
	require.NoError(t, err)
	_, err = l.Read()
	assert.ErrorContains(t, err, "not supported")
}

func TestFixedArrayHeaderChecksum(t *testing.T) {
	f := &file{}
	msg, err := NewChunkWriter(binary.NewWriter(f, cfg), allocator(0)).Write(sequence(8), []uint64{8}, []uint32{2}, 1)
	require.NoError(t, err)
	require.Equal(t, message.ChunkIndexFixedArray, msg.ChunkIndexType)
	f.buf[msg.ChunkIndexAddr+8] ^= 0xFF

	l, err := New(Dataset{
		Layout: msg,
		Space:  message.NewDataspace([]uint64{8}, nil),
		Type:   message.NewFixedPointDatatype(1, false, message.OrderLE),
	}, binary.NewReader(f, cfg))
	require.NoError(t, err)
	_, err = l.Read()
	assert.ErrorContains(t, err, "checksum")
}

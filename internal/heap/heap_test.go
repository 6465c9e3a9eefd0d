package heap

import (
	"bytes"
	stdbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

var cfg = binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}

func globalObject(e *binary.Encoder, index uint16, data []byte) {
	e.Uint16(index)
	e.Uint16(1)
	e.Zeros(4)
	e.Length(uint64(len(data)))
	e.Write(data)
	e.Zeros((8 - len(data)%8) % 8)
}

func collection(objects ...[]byte) []byte {
	body := binary.NewEncoder(cfg)
	for i, obj := range objects {
		globalObject(body, uint16(i+1), obj)
	}
	globalObject(body, 0, make([]byte, 16))

	e := binary.NewEncoder(cfg)
	e.Write([]byte("GCOL"))
	e.Uint8(1)
	e.Zeros(3)
	e.Length(uint64(16 + body.Len()))
	e.Write(body.Bytes())
	return e.Bytes()
}

func TestGlobalHeap(t *testing.T) {
	file := append(make([]byte, 64), collection([]byte("hello"), []byte("12345678"))...)
	r := binary.NewReader(bytes.NewReader(file), cfg)

	gh, err := ReadGlobalHeap(r, 64)
	require.NoError(t, err)

	obj, err := gh.Object(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), obj)
	obj, err = gh.Object(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("12345678"), obj)

	_, err = gh.Object(3)
	assert.Error(t, err)
	_, err = gh.Object(1 << 16)
	assert.Error(t, err)
}

func TestGlobalHeapErrors(t *testing.T) {
	r := binary.NewReader(bytes.NewReader(make([]byte, 64)), cfg)
	_, err := ReadGlobalHeap(r, 0)
	assert.ErrorContains(t, err, "not allocated")

	_, err = ReadGlobalHeap(r, 8)
	assert.Error(t, err, "no GCOL signature")
}

func TestDecodeID(t *testing.T) {
	e := binary.NewEncoder(cfg)
	e.Offset(4096)
	e.Uint32(7)

	id, err := DecodeID(e.Bytes(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ID{Collection: 4096, Index: 7}, id)

	_, err = DecodeID(e.Bytes()[:6], cfg)
	assert.Error(t, err)
}

func TestLocalHeap(t *testing.T) {
	data := []byte("\x00one\x00two\x00")
	e := binary.NewEncoder(cfg)
	e.Write([]byte("HEAP"))
	e.Zeros(4)
	e.Length(uint64(len(data)))
	e.Length(e.Undefined())
	e.Offset(32)
	e.Write(data)
	r := binary.NewReader(bytes.NewReader(e.Bytes()), cfg)

	lh, err := ReadLocalHeap(r, 0)
	require.NoError(t, err)
	for off, want := range map[uint64]string{0: "", 1: "one", 5: "two"} {
		got, err := lh.String(off)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = lh.String(uint64(len(data)))
	assert.Error(t, err)
}

package object

import (
	"bytes"
	stdbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

var cfg = binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}

func readAt(t *testing.T, file []byte, addr uint64) *Header {
	t.Helper()
	h, err := Read(binary.NewReader(bytes.NewReader(file), cfg), addr)
	require.NoError(t, err)
	return h
}

func TestEncodeGroupHeader(t *testing.T) {
	links := []*message.Link{
		message.NewHardLink("data", 800),
		message.NewSoftLink("alias", "/data"),
		message.NewExternalLink("ext", "other.h5", "/x"),
	}
	raw := Encode(cfg, GroupMessages(links), MinGroupChunkSize)

	// Put the header somewhere other than zero.
	file := append(make([]byte, 48), raw...)
	h := readAt(t, file, 48)

	assert.Equal(t, uint8(2), h.Version)
	assert.NotNil(t, h.LinkInfo())
	assert.False(t, h.IsDataset())

	got := h.Links()
	require.Len(t, got, 3)
	assert.Equal(t, "data", got[0].Name)
	assert.True(t, got[0].IsHard())
	assert.Equal(t, uint64(800), got[0].ObjectAddress)
	assert.True(t, got[1].IsSoft())
	assert.Equal(t, "/data", got[1].SoftLinkValue)
	assert.True(t, got[2].IsExternal())
	assert.Equal(t, "other.h5", got[2].ExternalFile)
	assert.Equal(t, "/x", got[2].ExternalPath)
}

func TestEncodePadsToMinimumChunk(t *testing.T) {
	empty := Encode(cfg, GroupMessages(nil), MinGroupChunkSize)
	// OHDR, version, flags, one-byte chunk size, chunk, checksum.
	assert.Len(t, empty, 4+1+1+1+MinGroupChunkSize+4)

	h := readAt(t, empty, 0)
	assert.Empty(t, h.Links())
}

func TestEncodeWideChunkSize(t *testing.T) {
	data := make([]byte, 300)
	attr := message.NewAttribute("blob", message.NewFixedPointDatatype(1, false, message.OrderLE),
		message.NewDataspace([]uint64{300}, nil), data)
	layout := message.NewContiguousLayout(4096, 8)
	space := message.NewDataspace([]uint64{1}, nil)
	dt := message.NewFloatDatatype(8, message.OrderLE)

	raw := Encode(cfg, DatasetMessages(space, dt, layout, []*message.Attribute{attr}), 0)
	assert.Equal(t, uint8(1), raw[5], "chunk size needs two bytes")

	h := readAt(t, raw, 0)
	assert.True(t, h.IsDataset())
	assert.Equal(t, uint64(4096), h.DataLayout().Address)
	require.Len(t, h.Attributes(), 1)
	assert.Equal(t, data, h.Attributes()[0].Data)
}

func TestReadRejectsBadChecksum(t *testing.T) {
	raw := Encode(cfg, GroupMessages(nil), MinGroupChunkSize)
	raw[10] ^= 0xFF

	_, err := Read(binary.NewReader(bytes.NewReader(raw), cfg), 0)
	assert.ErrorIs(t, err, ErrChecksum)
}

// v1Message frames one version 1 header message.
func v1Message(typ message.Type, body []byte) []byte {
	e := binary.NewEncoder(cfg)
	e.Uint16(uint16(typ))
	e.Uint16(uint16(len(body)))
	e.Zeros(4)
	e.Write(body)
	e.Zeros((8 - len(body)%8) % 8)
	return e.Bytes()
}

func TestReadV1WithContinuation(t *testing.T) {
	space := message.Encode(message.NewDataspace([]uint64{4, 5}, nil), cfg)

	cont := binary.NewEncoder(cfg)
	cont.Offset(200)
	cont.Length(64)
	symtab := binary.NewEncoder(cfg)
	symtab.Offset(1000)
	symtab.Offset(2000)

	msgs := append(v1Message(message.TypeDataspace, space), v1Message(message.TypeObjectHeaderContinuation, cont.Bytes())...)

	e := binary.NewEncoder(cfg)
	e.Uint8(1)
	e.Uint8(0)
	e.Uint16(3)
	e.Uint32(1)
	e.Uint32(uint32(len(msgs)))
	e.Zeros(4)
	e.Write(msgs)

	file := make([]byte, 264)
	copy(file, e.Bytes())
	copy(file[200:], v1Message(message.TypeSymbolTable, symtab.Bytes()))

	h := readAt(t, file, 0)
	assert.Equal(t, uint8(1), h.Version)
	require.NotNil(t, h.Dataspace())
	assert.Equal(t, []uint64{4, 5}, h.Dataspace().Dimensions)
	require.NotNil(t, h.SymbolTable())
	assert.Equal(t, uint64(1000), h.SymbolTable().BTreeAddress)
	assert.Equal(t, uint64(2000), h.SymbolTable().LocalHeapAddress)
}

func TestReadUnknownFormat(t *testing.T) {
	_, err := Read(binary.NewReader(bytes.NewReader(make([]byte, 16)), cfg), 0)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestReadRecordsSharedMessages(t *testing.T) {
	e := binary.NewEncoder(cfg)
	e.Write([]byte("OHDR"))
	e.Uint8(2)
	e.Uint8(0)
	body := binary.NewEncoder(cfg)
	body.Uint8(uint8(message.TypeDatatype))
	body.Uint16(uint16(cfg.OffsetSize + 2))
	body.Uint8(sharedMessage)
	body.Uint8(3)
	body.Uint8(2)
	body.Offset(4096)
	e.Uint8(uint8(body.Len()))
	e.Write(body.Bytes())
	e.Checksum()

	h := readAt(t, e.Bytes(), 0)
	assert.Nil(t, h.Datatype())
	assert.Equal(t, []message.Type{message.TypeDatatype}, h.Shared)
}

package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

func v2Header(typ uint8, recSize, depth, rootCount int, root, total uint64) *binary.Encoder {
	e := binary.NewEncoder(cfg)
	e.Write([]byte("BTHD"))
	e.Uint8(0)
	e.Uint8(typ)
	e.Uint32(512)
	e.Uint16(uint16(recSize))
	e.Uint16(uint16(depth))
	e.Uint8(100)
	e.Uint8(40)
	e.Offset(root)
	e.Uint16(uint16(rootCount))
	e.Length(total)
	e.Checksum()
	return e
}

func v2Node(sig string, typ uint8) *binary.Encoder {
	e := binary.NewEncoder(cfg)
	e.Write([]byte(sig))
	e.Uint8(0)
	e.Uint8(typ)
	return e
}

func chunkRec(e *binary.Encoder, addr uint64, scaled ...uint64) {
	e.Offset(addr)
	for _, s := range scaled {
		e.Uint64(s)
	}
}

// A root with one record between two leaves, read back in key order.
func TestReadChunksV2TwoLevels(t *testing.T) {
	var im image
	im.put(0, v2Header(chunkRecord, 24, 1, 1, 1000, 5))

	root := v2Node("BTIN", chunkRecord)
	chunkRec(root, 5200, 1, 0)
	root.Offset(2000)
	root.Uint8(2)
	root.Offset(3000)
	root.Uint8(2)
	root.Checksum()
	im.put(1000, root)

	left := v2Node("BTLF", chunkRecord)
	chunkRec(left, 5000, 0, 0)
	chunkRec(left, 5100, 0, 1)
	left.Checksum()
	im.put(2000, left)

	right := v2Node("BTLF", chunkRecord)
	chunkRec(right, 5300, 1, 1)
	chunkRec(right, right.Undefined(), 2, 0)
	right.Checksum()
	im.put(3000, right)

	got, err := ReadChunksV2(im.reader(), 0, []uint32{2, 3}, 48)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, want := range []Chunk{
		{Origin: []uint64{0, 0}, Addr: 5000, Size: 48},
		{Origin: []uint64{0, 3}, Addr: 5100, Size: 48},
		{Origin: []uint64{2, 0}, Addr: 5200, Size: 48},
		{Origin: []uint64{2, 3}, Addr: 5300, Size: 48},
	} {
		assert.Equal(t, want, got[i], "chunk %d", i)
	}
}

func TestReadChunksV2Filtered(t *testing.T) {
	var im image
	im.put(0, v2Header(filteredChunkRecord, 22, 0, 1, 400, 1))

	leaf := v2Node("BTLF", filteredChunkRecord)
	leaf.Offset(7000)
	leaf.Uint16(300)
	leaf.Uint32(1)
	leaf.Uint64(3)
	leaf.Checksum()
	im.put(400, leaf)

	got, err := ReadChunksV2(im.reader(), 0, []uint32{4}, 32)
	require.NoError(t, err)
	assert.Equal(t, []Chunk{{Origin: []uint64{12}, Addr: 7000, Size: 300, Mask: 1}}, got)
}

func TestReadChunksV2Errors(t *testing.T) {
	var im image
	im.put(0, v2Header(chunkRecord, 16, 0, 1, 400, 1))
	leaf := v2Node("BTLF", chunkRecord)
	chunkRec(leaf, 7000, 2)
	leaf.Checksum()
	im.put(400, leaf)

	_, err := ReadChunksV2(im.reader(), 0, []uint32{4}, 32)
	require.NoError(t, err)

	_, err = ReadChunksV2(im.reader(), 0, []uint32{4, 4}, 32)
	assert.ErrorContains(t, err, "for rank 2")

	im[410] ^= 0xFF
	_, err = ReadChunksV2(im.reader(), 0, []uint32{4}, 32)
	assert.ErrorContains(t, err, "checksum mismatch")

	var groups image
	groups.put(0, v2Header(5, 16, 0, 0, 400, 0))
	_, err = ReadChunksV2(groups.reader(), 0, []uint32{4}, 32)
	assert.ErrorContains(t, err, "not chunks")

	var empty image
	empty.put(0, v2Header(chunkRecord, 16, 0, 0, binary.NewEncoder(cfg).Undefined(), 0))
	got, err := ReadChunksV2(empty.reader(), 0, []uint32{4}, 32)
	require.NoError(t, err)
	assert.Empty(t, got)
}

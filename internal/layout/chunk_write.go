package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// ChunkWriter stores chunked dataset data together with its chunk index.
type ChunkWriter struct {
	w     *binary.Writer
	alloc func(size int64) uint64
}

// NewChunkWriter returns a ChunkWriter that places blocks at addresses
// handed out by alloc.
func NewChunkWriter(w *binary.Writer, alloc func(size int64) uint64) *ChunkWriter {
	return &ChunkWriter{w: w, alloc: alloc}
}

// Write stores data, a row-major array of dims with elem-byte elements,
// split into zero-padded chunks of cdims, and returns the layout message
// describing it. One chunk is stored under a single-chunk index; more
// are indexed by a fixed array.
func (cw *ChunkWriter) Write(data []byte, dims []uint64, cdims []uint32, elem uint32) (*message.DataLayout, error) {
	if len(cdims) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(cdims), len(dims))
	}
	for d, v := range cdims {
		if v == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	g := newGrid(dims, cdims, uint64(elem))

	addrs := make([]uint64, g.len())
	for i := range addrs {
		buf := make([]byte, g.chunkBytes())
		eachRow(g.at(uint64(i)), g, func(src, dst, n uint64) {
			copy(buf[src:src+n], data[dst:dst+n])
		})
		addr, err := cw.block(buf)
		if err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		addrs[i] = addr
	}

	if len(addrs) == 1 {
		msg := message.NewChunkedLayout(cdims, elem, message.ChunkIndexSingleChunk)
		msg.ChunkIndexAddr = addrs[0]
		return msg, nil
	}

	msg := message.NewChunkedLayout(cdims, elem, message.ChunkIndexFixedArray)
	msg.PageBits = uint8(max(10, bits.Len(uint(len(addrs)))))
	index, err := cw.fixedArray(addrs, msg.PageBits)
	if err != nil {
		return nil, fmt.Errorf("writing chunk index: %w", err)
	}
	msg.ChunkIndexAddr = index
	return msg, nil
}

func (cw *ChunkWriter) block(b []byte) (uint64, error) {
	addr := cw.alloc(int64(len(b)))
	return addr, cw.w.At(int64(addr)).WriteBytes(b)
}

// fixedArray writes an unfiltered fixed array header and its single data
// block. pageBits is large enough that the block is never paged.
func (cw *ChunkWriter) fixedArray(addrs []uint64, pageBits uint8) (uint64, error) {
	cfg := cw.w.Config()

	hdr := binary.NewEncoder(cfg)
	blk := binary.NewEncoder(cfg)
	headerAddr := cw.alloc(int64(8 + cfg.LengthSize + cfg.OffsetSize + 4))
	blockAddr := cw.alloc(int64(6 + cfg.OffsetSize + len(addrs)*cfg.OffsetSize + 4))

	blk.Write([]byte("FADB"))
	blk.Uint8(0)
	blk.Uint8(0)
	blk.Offset(headerAddr)
	for _, a := range addrs {
		blk.Offset(a)
	}
	blk.Checksum()
	if err := cw.w.At(int64(blockAddr)).WriteBytes(blk.Bytes()); err != nil {
		return 0, err
	}

	hdr.Write([]byte("FAHD"))
	hdr.Uint8(0)
	hdr.Uint8(0)
	hdr.Uint8(uint8(cfg.OffsetSize))
	hdr.Uint8(pageBits)
	hdr.Length(uint64(len(addrs)))
	hdr.Offset(blockAddr)
	hdr.Checksum()
	if err := cw.w.At(int64(headerAddr)).WriteBytes(hdr.Bytes()); err != nil {
		return 0, err
	}
	return headerAddr, nil
}

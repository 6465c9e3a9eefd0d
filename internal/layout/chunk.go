package layout

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/btree"
	"github.com/robert-malhotra/h5cat/internal/filter"
	"github.com/robert-malhotra/h5cat/internal/message"
)

type chunked struct {
	ds       *Dataset
	pipeline *filter.Pipeline
	r        *binary.Reader
}

// grid describes how a dataset is cut into chunks.
type grid struct {
	dims   []uint64 // dataset extent
	cdims  []uint32 // chunk extent
	counts []uint64 // chunks per dimension
	limits []uint64 // chunks per dimension of the maximum extent, 0 if unlimited
	elem   uint64
}

// unlimited is the maximum extent of a dimension that can grow without
// bound.
const unlimited = math.MaxUint64

func ceilDiv(a, b uint64) uint64 { return a/b + min(a%b, 1) }

func newGrid(dims []uint64, cdims []uint32, elem uint64) grid {
	g := grid{dims: dims, cdims: cdims, counts: make([]uint64, len(dims)), elem: elem}
	for d := range dims {
		g.counts[d] = ceilDiv(dims[d], uint64(cdims[d]))
	}
	g.limits = g.counts
	return g
}

// withMax sets the maximum extent. Array indexes number their entries
// over it rather than over the current extent.
func (g grid) withMax(maxDims []uint64) grid {
	if len(maxDims) != len(g.dims) {
		return g
	}
	g.limits = make([]uint64, len(g.dims))
	for d, m := range maxDims {
		if m != unlimited {
			g.limits[d] = ceilDiv(m, uint64(g.cdims[d]))
		}
	}
	return g
}

// len returns the number of chunks.
func (g grid) len() uint64 {
	n := uint64(1)
	for _, c := range g.counts {
		n *= c
	}
	return n
}

// indexLen returns the number of chunks in the maximum extent. It fails
// for unlimited dimensions and on overflow.
func (g grid) indexLen() (uint64, error) {
	n := uint64(1)
	for d, c := range g.limits {
		hi, lo := bits.Mul64(n, c)
		if c == 0 || hi != 0 {
			return 0, fmt.Errorf("dimension %d has no fixed chunk count", d)
		}
		n = lo
	}
	return n, nil
}

// chunkBytes returns the size of one unfiltered chunk. It saturates at
// math.MaxUint64.
func (g grid) chunkBytes() uint64 {
	n := g.elem
	for _, c := range g.cdims {
		hi, lo := bits.Mul64(n, uint64(c))
		if hi != 0 {
			return math.MaxUint64
		}
		n = lo
	}
	return n
}

// at returns the first coordinate of chunk i of the current extent in
// row-major order.
func (g grid) at(i uint64) []uint64 {
	o := make([]uint64, len(g.dims))
	for d := len(g.dims) - 1; d >= 0; d-- {
		o[d] = i % g.counts[d] * uint64(g.cdims[d])
		i /= g.counts[d]
	}
	return o
}

// origin returns the first coordinate of index entry i. Entries run
// row-major over the maximum extent; an unlimited dimension unlim >= 0
// is moved in front of the others first.
func (g grid) origin(i uint64, unlim int) []uint64 {
	o := make([]uint64, len(g.dims))
	for d := len(g.dims) - 1; d >= 0; d-- {
		if d == unlim {
			continue
		}
		o[d] = i % g.limits[d] * uint64(g.cdims[d])
		i /= g.limits[d]
	}
	if unlim >= 0 {
		o[unlim] = i * uint64(g.cdims[unlim])
	}
	return o
}

// linear is the inverse of origin for an index without unlimited
// dimensions.
func (g grid) linear(o []uint64) uint64 {
	var i uint64
	for d := range g.dims {
		i = i*g.limits[d] + o[d]/uint64(g.cdims[d])
	}
	return i
}

// inside reports whether the chunk at o overlaps the current extent.
func (g grid) inside(o []uint64) bool {
	for d := range g.dims {
		if o[d] >= g.dims[d] {
			return false
		}
	}
	return true
}

func (c *chunked) Read() ([]byte, error) {
	total, err := c.ds.size()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []byte{}, nil
	}

	dims := c.ds.Space.Dimensions
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	msg := c.ds.Layout
	if len(msg.ChunkDims) < len(dims) {
		return nil, fmt.Errorf("chunked layout has %d chunk dimensions for rank %d", len(msg.ChunkDims), len(dims))
	}
	cdims := msg.ChunkDims[:len(dims)]
	for d, v := range cdims {
		if v == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	g := newGrid(dims, cdims, uint64(c.ds.Type.Size))
	if len(c.ds.Space.Dimensions) > 0 {
		g = g.withMax(c.ds.Space.MaxDims)
	}
	if g.chunkBytes() > MaxBytes {
		return nil, fmt.Errorf("chunk shape %v exceeds the %d byte read limit", cdims, uint64(MaxBytes))
	}
	c.pipeline.Bound(g.chunkBytes())

	chunks, err := c.index(g)
	if err != nil {
		return nil, err
	}

	out := c.ds.filled(total)
	for _, ch := range chunks {
		data, err := c.load(ch)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", ch.Origin, err)
		}
		eachRow(ch.Origin, g, func(src, dst, n uint64) {
			if src+n <= uint64(len(data)) {
				copy(out[dst:dst+n], data[src:src+n])
			}
		})
	}
	return out, nil
}

// index lists the allocated chunks. Layouts before version 4 always use a
// version 1 B-tree.
func (c *chunked) index(g grid) ([]btree.Chunk, error) {
	msg := c.ds.Layout
	addr := msg.ChunkIndexAddr
	if c.r.IsUndefinedOffset(addr) {
		return nil, nil
	}

	kind := msg.ChunkIndexType
	if msg.Version < 4 {
		kind = message.ChunkIndexBTreeV1
	}
	switch kind {
	case message.ChunkIndexBTreeV1:
		chunks, err := btree.ReadChunks(c.r, addr, len(g.dims))
		if err != nil {
			return nil, fmt.Errorf("reading chunk B-tree: %w", err)
		}
		return chunks, nil
	case message.ChunkIndexSingleChunk:
		ch := btree.Chunk{Origin: make([]uint64, len(g.dims)), Addr: addr, Size: g.chunkBytes()}
		if msg.Filtered() {
			ch.Size, ch.Mask = msg.FilteredChunkSize, msg.FilterMask
		}
		return []btree.Chunk{ch}, nil
	case message.ChunkIndexImplicit:
		if _, err := g.indexLen(); err != nil {
			return nil, fmt.Errorf("implicit chunk index: %w", err)
		}
		size := g.chunkBytes()
		chunks := make([]btree.Chunk, g.len())
		for i := range chunks {
			o := g.at(uint64(i))
			chunks[i] = btree.Chunk{Origin: o, Addr: addr + g.linear(o)*size, Size: size}
		}
		return chunks, nil
	case message.ChunkIndexFixedArray:
		chunks, err := c.readFixedArray(addr, g)
		if err != nil {
			return nil, fmt.Errorf("reading fixed array index: %w", err)
		}
		return chunks, nil
	case message.ChunkIndexExtensibleArray:
		chunks, err := c.readExtensibleArray(addr, g)
		if err != nil {
			return nil, fmt.Errorf("reading extensible array index: %w", err)
		}
		return chunks, nil
	case message.ChunkIndexBTreeV2:
		chunks, err := btree.ReadChunksV2(c.r, addr, g.cdims, g.chunkBytes())
		if err != nil {
			return nil, fmt.Errorf("reading chunk B-tree: %w", err)
		}
		return chunks, nil
	default:
		return nil, fmt.Errorf("chunk index type %d is not supported", kind)
	}
}

func (c *chunked) load(ch btree.Chunk) ([]byte, error) {
	if ch.Size > MaxBytes {
		return nil, fmt.Errorf("stored chunk of %d bytes exceeds the read limit", ch.Size)
	}
	data, err := c.r.At(int64(ch.Addr)).ReadBytes(int(ch.Size))
	if err != nil {
		return nil, err
	}
	return c.pipeline.Decode(data, ch.Mask)
}

// readFixedArray reads a fixed array header (FAHD) and its unpaged data
// block (FADB). Entries are in row-major grid order; filtered entries add
// the stored size and a filter mask after the address.
func (c *chunked) readFixedArray(addr uint64, g grid) ([]btree.Chunk, error) {
	cfg := c.r.Config()
	head, err := c.r.At(int64(addr)).ReadBytes(12 + cfg.LengthSize + cfg.OffsetSize)
	if err != nil {
		return nil, err
	}
	d := binary.NewDecoder(head, cfg)
	d.Expect("FAHD")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("unsupported fixed array version %d", v)
	}
	d.Skip(1) // client id
	entrySize := int(d.Uint8())
	pageBits := d.Uint8()
	count := d.Length()
	block := d.Offset()
	sum := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if sum != binary.Lookup3Checksum(head[:len(head)-4]) {
		return nil, fmt.Errorf("fixed array header checksum mismatch")
	}
	if pageBits < 64 && count > 1<<pageBits {
		return nil, fmt.Errorf("paged fixed array with %d entries is not supported", count)
	}
	want, err := g.indexLen()
	if err != nil {
		return nil, err
	}
	if count != want {
		return nil, fmt.Errorf("fixed array holds %d entries for %d chunks", count, want)
	}
	filtered := entrySize > cfg.OffsetSize
	if entrySize < cfg.OffsetSize || filtered && entrySize < cfg.OffsetSize+5 {
		return nil, fmt.Errorf("fixed array entry size %d too small", entrySize)
	}
	if count > MaxBytes/uint64(entrySize) {
		return nil, fmt.Errorf("fixed array of %d entries is too large", count)
	}

	raw, err := c.r.At(int64(block)).ReadBytes(6 + cfg.OffsetSize + int(count)*entrySize)
	if err != nil {
		return nil, err
	}
	d = binary.NewDecoder(raw, cfg)
	d.Expect("FADB")
	d.Skip(2 + cfg.OffsetSize) // version, client id, header address

	var out []btree.Chunk
	for i := range count {
		ch := btree.Chunk{Addr: d.Offset(), Size: g.chunkBytes()}
		if filtered {
			ch.Size = d.UintN(entrySize - cfg.OffsetSize - 4)
			ch.Mask = d.Uint32()
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
		ch.Origin = g.origin(i, -1)
		if c.r.IsUndefinedOffset(ch.Addr) || !g.inside(ch.Origin) {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// eachRow calls fn once per innermost row of the chunk at origin that lies
// inside the dataset. src is the byte offset of the row in the chunk, dst
// its offset in the full array and n its length in bytes.
func eachRow(origin []uint64, g grid, fn func(src, dst, n uint64)) {
	rank := len(g.dims)
	extent := make([]uint64, rank)
	for d := range g.dims {
		if origin[d] >= g.dims[d] {
			return
		}
		extent[d] = min(uint64(g.cdims[d]), g.dims[d]-origin[d])
	}

	pos := make([]uint64, rank)
	for {
		var src, dst uint64
		cs, ds := g.elem, g.elem
		for d := rank - 1; d >= 0; d-- {
			src += pos[d] * cs
			dst += (origin[d] + pos[d]) * ds
			cs *= uint64(g.cdims[d])
			ds *= g.dims[d]
		}
		fn(src, dst, extent[rank-1]*g.elem)

		d := rank - 2
		for ; d >= 0; d-- {
			if pos[d]++; pos[d] < extent[d] {
				break
			}
			pos[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

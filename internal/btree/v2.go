package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Version 2 B-tree record types for dataset chunks.
const (
	chunkRecord         = 10
	filteredChunkRecord = 11
)

// v2Prefix is the signature, version, type and checksum every node carries.
const v2Prefix = 10

// v2Tree is a version 2 B-tree header (BTHD) with the node geometry derived
// from it.
type v2Tree struct {
	r         *binary.Reader
	typ       uint8
	nodeSize  uint64
	recSize   int
	depth     int
	root      uint64
	rootCount int
	total     uint64

	countSize int   // bytes holding the record count of a child
	totalSize []int // bytes holding the subtree record count, by depth
}

func readV2Tree(r *binary.Reader, addr uint64) (*v2Tree, error) {
	cfg := r.Config()
	raw, err := r.At(int64(addr)).ReadBytes(22 + cfg.OffsetSize + cfg.LengthSize)
	if err != nil {
		return nil, fmt.Errorf("B-tree header at %d: %w", addr, err)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("BTHD")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("unsupported B-tree version %d", v)
	}
	t := &v2Tree{r: r, typ: d.Uint8()}
	nodeSize := uint64(d.Uint32())
	t.nodeSize = nodeSize
	t.recSize = int(d.Uint16())
	t.depth = int(d.Uint16())
	d.Skip(2) // split and merge percentages
	t.root = d.Offset()
	t.rootCount = int(d.Uint16())
	t.total = d.Length()
	sum := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("B-tree header at %d: %w", addr, err)
	}
	if sum != binary.Lookup3Checksum(raw[:len(raw)-4]) {
		return nil, fmt.Errorf("B-tree header at %d: checksum mismatch", addr)
	}
	if t.recSize == 0 || nodeSize <= v2Prefix || t.depth > maxLevel {
		return nil, fmt.Errorf("B-tree header at %d: bad geometry", addr)
	}

	// Child pointers get wider with depth; the widths follow from how many
	// records a full subtree can hold.
	leafMax := (nodeSize - v2Prefix) / uint64(t.recSize)
	t.countSize = encSize(leafMax)
	t.totalSize = make([]int, t.depth+1)
	cumMax := leafMax
	for u := 1; u <= t.depth; u++ {
		ptr := uint64(t.pointerSize(u))
		if nodeSize < v2Prefix+ptr {
			return nil, fmt.Errorf("B-tree header at %d: bad geometry", addr)
		}
		nodeMax := (nodeSize - v2Prefix - ptr) / (uint64(t.recSize) + ptr)
		hi, lo := bits.Mul64(nodeMax+1, cumMax)
		if hi != 0 || lo+nodeMax < lo {
			return nil, fmt.Errorf("B-tree header at %d: depth %d overflows", addr, t.depth)
		}
		cumMax = lo + nodeMax
		t.totalSize[u] = encSize(cumMax)
	}
	return t, nil
}

// encSize is the number of bytes that can hold n.
func encSize(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}

// pointerSize is the size of one child pointer in a node at depth u.
func (t *v2Tree) pointerSize(u int) int {
	n := t.r.Config().OffsetSize + t.countSize
	if u > 1 {
		n += t.totalSize[u-1]
	}
	return n
}

// walk visits the records of the node at addr in key order. Internal
// nodes hold records between their children.
func (t *v2Tree) walk(addr uint64, depth, count int, visit func(rec *binary.Decoder) error) error {
	cfg := t.r.Config()
	sig, ptr := "BTLF", 0
	if depth > 0 {
		sig, ptr = "BTIN", t.pointerSize(depth)
	}
	if count < 0 || uint64(count)*uint64(t.recSize) > t.nodeSize {
		return fmt.Errorf("B-tree node at %d holds %d records", addr, count)
	}
	size := 6 + count*t.recSize
	if depth > 0 {
		size += (count + 1) * ptr
	}
	raw, err := t.r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	if binary.NewDecoder(raw[size:], cfg).Uint32() != binary.Lookup3Checksum(raw[:size]) {
		return fmt.Errorf("B-tree node at %d: checksum mismatch", addr)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect(sig)
	d.Skip(1) // version
	if typ := d.Uint8(); d.Err() == nil && typ != t.typ {
		return fmt.Errorf("B-tree node at %d has type %d, want %d", addr, typ, t.typ)
	}
	recs := d.Bytes(count * t.recSize)
	if err := d.Err(); err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}

	for i := 0; i <= count; i++ {
		if depth > 0 {
			child := d.Offset()
			n := int(d.UintN(t.countSize))
			if depth > 1 {
				d.Skip(t.totalSize[depth-1])
			}
			if err := d.Err(); err != nil {
				return fmt.Errorf("B-tree node at %d: %w", addr, err)
			}
			if err := t.walk(child, depth-1, n, visit); err != nil {
				return err
			}
		}
		if i < count {
			rec := binary.NewDecoder(recs[i*t.recSize:(i+1)*t.recSize], cfg)
			if err := visit(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadChunksV2 lists the chunks indexed by the version 2 B-tree at addr.
// cdims gives the chunk shape, which turns the scaled coordinates of each
// record into dataset coordinates. Unfiltered chunks are size bytes.
func ReadChunksV2(r *binary.Reader, addr uint64, cdims []uint32, size uint64) ([]Chunk, error) {
	t, err := readV2Tree(r, addr)
	if err != nil {
		return nil, err
	}
	cfg := r.Config()
	rank := len(cdims)
	width := t.recSize - cfg.OffsetSize - 8*rank
	switch t.typ {
	case chunkRecord:
		if width != 0 {
			return nil, fmt.Errorf("chunk record of %d bytes for rank %d", t.recSize, rank)
		}
	case filteredChunkRecord:
		if width -= 4; width < 1 || width > 8 {
			return nil, fmt.Errorf("filtered chunk record of %d bytes for rank %d", t.recSize, rank)
		}
	default:
		return nil, fmt.Errorf("B-tree at %d has record type %d, not chunks", addr, t.typ)
	}
	if t.total == 0 || r.IsUndefinedOffset(t.root) {
		return nil, nil
	}

	var out []Chunk
	err = t.walk(t.root, t.depth, t.rootCount, func(rec *binary.Decoder) error {
		c := Chunk{Addr: rec.Offset(), Size: size, Origin: make([]uint64, rank)}
		if t.typ == filteredChunkRecord {
			c.Size = rec.UintN(width)
			c.Mask = rec.Uint32()
		}
		for i := range c.Origin {
			c.Origin[i] = rec.Uint64() * uint64(cdims[i])
		}
		if !r.IsUndefinedOffset(c.Addr) {
			out = append(out, c)
		}
		return rec.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

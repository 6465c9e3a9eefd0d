package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/btree"
)

// earray is the header (EAHD) of an extensible array chunk index. The
// first idxElems entries live in the index block; the rest live in data
// blocks that double in size every other super block.
type earray struct {
	r        *binary.Reader
	entry    int
	filtered bool
	maxBits  uint8
	idxElems uint64
	dblkMin  uint64
	sblkMin  uint64
	pageBits uint8
	stored   uint64 // one past the highest index ever set
	iblock   uint64
}

// readExtensibleArray lists the chunks of an extensible array index. The
// unlimited dimension is the slowest varying one in entry order.
func (c *chunked) readExtensibleArray(addr uint64, g grid) ([]btree.Chunk, error) {
	unlim := -1
	for d, l := range g.limits {
		if l != 0 {
			continue
		}
		if unlim >= 0 {
			return nil, fmt.Errorf("dimensions %d and %d are both unlimited", unlim, d)
		}
		unlim = d
	}

	ea, err := readEArray(c.r, addr)
	if err != nil {
		return nil, err
	}
	cfg := c.r.Config()
	var out []btree.Chunk
	err = ea.each(func(i uint64, e *binary.Decoder) error {
		ch := btree.Chunk{Addr: e.Offset(), Size: g.chunkBytes()}
		if ea.filtered {
			ch.Size = e.UintN(ea.entry - cfg.OffsetSize - 4)
			ch.Mask = e.Uint32()
		}
		if err := e.Err(); err != nil {
			return err
		}
		ch.Origin = g.origin(i, unlim)
		if !c.r.IsUndefinedOffset(ch.Addr) && g.inside(ch.Origin) {
			out = append(out, ch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readEArray(r *binary.Reader, addr uint64) (*earray, error) {
	cfg := r.Config()
	raw, err := r.At(int64(addr)).ReadBytes(16 + 6*cfg.LengthSize + cfg.OffsetSize)
	if err != nil {
		return nil, err
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("EAHD")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("unsupported extensible array version %d", v)
	}
	ea := &earray{r: r}
	ea.filtered = d.Uint8() == 1
	ea.entry = int(d.Uint8())
	ea.maxBits = d.Uint8()
	ea.idxElems = uint64(d.Uint8())
	ea.dblkMin = uint64(d.Uint8())
	ea.sblkMin = uint64(d.Uint8())
	ea.pageBits = d.Uint8()
	d.Skip(4 * cfg.LengthSize) // super and data block statistics
	ea.stored = d.Length()
	d.Length() // elements realized
	ea.iblock = d.Offset()
	sum := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if sum != binary.Lookup3Checksum(raw[:len(raw)-4]) {
		return nil, fmt.Errorf("extensible array header checksum mismatch")
	}

	switch {
	case ea.entry < cfg.OffsetSize || ea.filtered && ea.entry < cfg.OffsetSize+5:
		return nil, fmt.Errorf("extensible array entry size %d too small", ea.entry)
	case !power(ea.dblkMin) || !power(ea.sblkMin):
		return nil, fmt.Errorf("extensible array block minimums %d and %d are not powers of two", ea.dblkMin, ea.sblkMin)
	case ea.maxBits > 64 || int(ea.maxBits) < log2(ea.dblkMin):
		return nil, fmt.Errorf("extensible array holds 2^%d elements", ea.maxBits)
	}
	return ea, nil
}

func power(n uint64) bool { return n != 0 && n&(n-1) == 0 }

func log2(n uint64) int { return bits.TrailingZeros64(n) }

// each calls visit with every entry below the stored count, in index
// order. Entries in blocks that were never allocated are skipped.
func (ea *earray) each(visit func(i uint64, e *binary.Decoder) error) error {
	cfg := ea.r.Config()
	nsblks := 1 + int(ea.maxBits) - log2(ea.dblkMin)
	inIndex := 2 * log2(ea.sblkMin)
	ndblk := 2 * (ea.sblkMin - 1)
	nsblk := max(nsblks-inIndex, 0)

	size := 6 + cfg.OffsetSize + int(ea.idxElems)*ea.entry + (int(ndblk)+nsblk)*cfg.OffsetSize + 4
	raw, err := ea.r.At(int64(ea.iblock)).ReadBytes(size)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("EAIB")
	d.Skip(2 + cfg.OffsetSize) // version, client id, header address
	for i := range ea.idxElems {
		e := binary.NewDecoder(d.Bytes(ea.entry), cfg)
		if i >= ea.stored {
			continue
		}
		if err := visit(i, e); err != nil {
			return err
		}
	}
	dblks := make([]uint64, ndblk)
	for i := range dblks {
		dblks[i] = d.Offset()
	}
	sblks := make([]uint64, nsblk)
	for i := range sblks {
		sblks[i] = d.Offset()
	}
	sum := d.Uint32()
	if err := d.Err(); err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	if sum != binary.Lookup3Checksum(raw[:len(raw)-4]) {
		return fmt.Errorf("index block checksum mismatch")
	}

	next := ea.idxElems
	for u := 0; next < ea.stored; u++ {
		if u >= nsblks {
			return fmt.Errorf("%d entries do not fit in %d super blocks", ea.stored, nsblks)
		}
		count := uint64(1) << (u / 2)
		nelmts := uint64(1) << ((u + 1) / 2) * ea.dblkMin

		var addrs []uint64
		if u < inIndex {
			addrs, dblks = dblks[:count], dblks[count:]
		} else if sb := sblks[u-inIndex]; !ea.r.IsUndefinedOffset(sb) {
			if addrs, err = ea.superBlock(sb, count, nelmts); err != nil {
				return err
			}
		}
		for k := uint64(0); k < count && next < ea.stored; k++ {
			if k < uint64(len(addrs)) && !ea.r.IsUndefinedOffset(addrs[k]) {
				if err := ea.dataBlock(addrs[k], next, nelmts, visit); err != nil {
					return err
				}
			}
			next += nelmts
		}
	}
	return nil
}

func (ea *earray) paged(nelmts uint64) bool {
	return ea.pageBits < 64 && nelmts > 1<<ea.pageBits
}

// prefix is the size of the common super and data block header: signature,
// version, client id, header address and block offset.
func (ea *earray) prefix() int {
	return 6 + ea.r.Config().OffsetSize + (int(ea.maxBits)+7)/8
}

func (ea *earray) superBlock(addr, count, nelmts uint64) ([]uint64, error) {
	if ea.paged(nelmts) {
		return nil, fmt.Errorf("paged extensible array data blocks are not supported")
	}
	cfg := ea.r.Config()
	raw, err := ea.r.At(int64(addr)).ReadBytes(ea.prefix() + int(count)*cfg.OffsetSize + 4)
	if err != nil {
		return nil, fmt.Errorf("super block at %d: %w", addr, err)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("EASB")
	d.Skip(ea.prefix() - 4)
	addrs := make([]uint64, count)
	for i := range addrs {
		addrs[i] = d.Offset()
	}
	sum := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("super block at %d: %w", addr, err)
	}
	if sum != binary.Lookup3Checksum(raw[:len(raw)-4]) {
		return nil, fmt.Errorf("super block at %d: checksum mismatch", addr)
	}
	return addrs, nil
}

func (ea *earray) dataBlock(addr, first, nelmts uint64, visit func(uint64, *binary.Decoder) error) error {
	if ea.paged(nelmts) {
		return fmt.Errorf("paged extensible array data blocks are not supported")
	}
	if nelmts > MaxBytes/uint64(ea.entry) {
		return fmt.Errorf("data block of %d entries is too large", nelmts)
	}
	cfg := ea.r.Config()
	raw, err := ea.r.At(int64(addr)).ReadBytes(ea.prefix() + int(nelmts)*ea.entry + 4)
	if err != nil {
		return fmt.Errorf("data block at %d: %w", addr, err)
	}
	if binary.NewDecoder(raw[len(raw)-4:], cfg).Uint32() != binary.Lookup3Checksum(raw[:len(raw)-4]) {
		return fmt.Errorf("data block at %d: checksum mismatch", addr)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("EADB")
	d.Skip(ea.prefix() - 4)
	for i := range nelmts {
		e := binary.NewDecoder(d.Bytes(ea.entry), cfg)
		if first+i >= ea.stored {
			break
		}
		if err := visit(first+i, e); err != nil {
			return err
		}
	}
	return d.Err()
}

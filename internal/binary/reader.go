// Package binary reads and writes the fixed and variable-width integers
// that make up the HDF5 on-disk format.
package binary

import (
	"encoding/binary"
	"io"
)

// Config carries the byte order and the widths of addresses ("offsets")
// and lengths, all taken from the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// uint decodes a little or big-endian integer of any width up to 8 bytes.
func (c Config) uint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(c.ByteOrder.Uint16(b))
	case 4:
		return uint64(c.ByteOrder.Uint32(b))
	case 8:
		return c.ByteOrder.Uint64(b)
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c Config) putUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		c.ByteOrder.PutUint16(b, uint16(v))
	case 4:
		c.ByteOrder.PutUint32(b, uint32(v))
	case 8:
		c.ByteOrder.PutUint64(b, v)
	default:
		for i := range b {
			b[i] = byte(v >> (8 * i))
		}
	}
}

// undefined is the all-ones address HDF5 uses for "not allocated".
func (c Config) undefined() uint64 {
	if c.OffsetSize >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*c.OffsetSize) - 1
}

// Reader is a cursor over an io.ReaderAt. Copies made with At share the
// source but move independently.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

// NewReader returns a Reader at offset zero.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: r, cfg: cfg}
}

// At returns a new Reader positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: offset}
}

// Pos returns the current position.
func (r *Reader) Pos() int64 { return r.pos }

// Skip moves the position forward by n bytes.
func (r *Reader) Skip(n int64) { r.pos += n }

// Peek reads n bytes without moving.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.src.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err == nil {
		r.pos += int64(len(buf))
	}
	return buf, err
}

// ReadUintN reads an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.cfg.uint(buf), nil
}

// IsUndefinedOffset reports whether addr is the all-ones sentinel.
func (r *Reader) IsUndefinedOffset(addr uint64) bool { return addr == r.cfg.undefined() }

// Config returns the widths and byte order the Reader decodes with.
func (r *Reader) Config() Config { return r.cfg }

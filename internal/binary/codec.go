package binary

import (
	"bytes"
	"fmt"
	"io"
)

// Decoder reads fields from a message body already in memory. The first
// short read records an error and every later read returns zero, so a run
// of fields can be decoded and checked once with Err.
type Decoder struct {
	buf []byte
	off int
	cfg Config
	err error
}

// NewDecoder returns a Decoder over b.
func NewDecoder(b []byte, cfg Config) *Decoder {
	return &Decoder{buf: b, cfg: cfg}
}

// Config returns the widths and byte order the Decoder reads with.
func (d *Decoder) Config() Config { return d.cfg }

// Err returns the first error met, if any.
func (d *Decoder) Err() error { return d.err }

// Pos returns the number of bytes consumed.
func (d *Decoder) Pos() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Fail records err unless an earlier error is already held.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Bytes returns the next n bytes without copying.
func (d *Decoder) Bytes(n int) []byte {
	if d.err != nil || n < 0 {
		return nil
	}
	if n > d.Remaining() {
		d.err = fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, d.off, d.Remaining(), io.ErrUnexpectedEOF)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Since returns the bytes consumed from pos up to the current position.
func (d *Decoder) Since(pos int) []byte { return d.buf[pos:d.off] }

// Rest returns every unread byte.
func (d *Decoder) Rest() []byte { return d.Bytes(d.Remaining()) }

// Skip discards n bytes.
func (d *Decoder) Skip(n int) { d.Bytes(n) }

// Align skips to the next multiple of n counted from the start of the buffer.
func (d *Decoder) Align(n int) {
	if n > 1 && d.off%n != 0 {
		d.Skip(n - d.off%n)
	}
}

// UintN reads an n-byte unsigned integer.
func (d *Decoder) UintN(n int) uint64 {
	if b := d.Bytes(n); b != nil {
		return d.cfg.uint(b)
	}
	return 0
}

func (d *Decoder) Uint8() uint8   { return uint8(d.UintN(1)) }
func (d *Decoder) Uint16() uint16 { return uint16(d.UintN(2)) }
func (d *Decoder) Uint32() uint32 { return uint32(d.UintN(4)) }
func (d *Decoder) Uint64() uint64 { return d.UintN(8) }

// Offset reads a file address.
func (d *Decoder) Offset() uint64 { return d.UintN(d.cfg.OffsetSize) }

// Length reads a length field.
func (d *Decoder) Length() uint64 { return d.UintN(d.cfg.LengthSize) }

// CString reads a NUL-terminated string and consumes the terminator.
func (d *Decoder) CString() string {
	if d.err != nil {
		return ""
	}
	i := bytes.IndexByte(d.buf[d.off:], 0)
	if i < 0 {
		d.err = fmt.Errorf("unterminated string at offset %d: %w", d.off, io.ErrUnexpectedEOF)
		return ""
	}
	s := string(d.buf[d.off : d.off+i])
	d.off += i + 1
	return s
}

// Undefined returns the all-ones "not allocated" address.
func (d *Decoder) Undefined() uint64 { return d.cfg.undefined() }

// Expect reads len(sig) bytes and fails unless they equal sig.
func (d *Decoder) Expect(sig string) {
	if got := d.Bytes(len(sig)); d.err == nil && string(got) != sig {
		d.err = fmt.Errorf("bad signature %q, want %q", got, sig)
	}
}

// Encoder builds a message body in memory.
type Encoder struct {
	buf []byte
	cfg Config
}

// NewEncoder returns an empty Encoder.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Bytes returns everything encoded so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Config returns the widths and byte order the Encoder writes with.
func (e *Encoder) Config() Config { return e.cfg }

// Write appends b.
func (e *Encoder) Write(b []byte) { e.buf = append(e.buf, b...) }

// CString appends s with a NUL terminator.
func (e *Encoder) CString(s string) {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Zeros appends n zero bytes.
func (e *Encoder) Zeros(n int) {
	for ; n > 0; n-- {
		e.buf = append(e.buf, 0)
	}
}

// UintN appends v as an n-byte unsigned integer.
func (e *Encoder) UintN(v uint64, n int) {
	start := len(e.buf)
	e.Zeros(n)
	e.cfg.putUint(e.buf[start:], v)
}

func (e *Encoder) Uint8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) Uint16(v uint16) { e.UintN(uint64(v), 2) }
func (e *Encoder) Uint32(v uint32) { e.UintN(uint64(v), 4) }
func (e *Encoder) Uint64(v uint64) { e.UintN(v, 8) }

// Offset appends a file address.
func (e *Encoder) Offset(v uint64) { e.UintN(v, e.cfg.OffsetSize) }

// Length appends a length field.
func (e *Encoder) Length(v uint64) { e.UintN(v, e.cfg.LengthSize) }

// Checksum appends the lookup3 checksum of everything encoded so far.
func (e *Encoder) Checksum() { e.Uint32(Lookup3Checksum(e.buf)) }

// Undefined returns the all-ones "not allocated" address.
func (e *Encoder) Undefined() uint64 { return e.cfg.undefined() }

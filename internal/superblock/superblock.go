// Package superblock reads and writes the HDF5 superblock, the entry point
// that records address widths and where the root group lives.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/h5cat/internal/binary"
)

// Signature starts every HDF5 superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock")
)

// maxSize covers the largest superblock read: a version 1 block with
// eight-byte addresses and the root symbol table entry.
const maxSize = 8 + 20 + 4*8 + 2*8 + 8 + 16

type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8

	// BaseAddress is the absolute position addresses are relative to. It
	// is non-zero when the file carries a user block.
	BaseAddress uint64
	EOFAddress  uint64

	RootGroupAddress uint64

	// Versions 0 and 1 cache the root group's symbol table in the
	// superblock. Both are zero when the cache is absent.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64
}

// Read finds the signature at offset 0 or a power of two from 512 up and
// decodes the superblock there.
func Read(r io.ReaderAt) (*Superblock, error) {
	buf := make([]byte, maxSize)
	for offset := int64(0); ; offset = max(512, offset*2) {
		n, err := r.ReadAt(buf, offset)
		if n < len(Signature) {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, ErrNotHDF5
		}
		if !bytes.Equal(buf[:len(Signature)], Signature) {
			continue
		}
		sb, err := decode(buf[:n])
		if err != nil {
			return nil, fmt.Errorf("superblock at %d: %w", offset, err)
		}
		return sb, nil
	}
}

func decode(buf []byte) (*Superblock, error) {
	// Address widths come from the block itself, so the fixed fields are
	// read with a provisional config first.
	d := binpkg.NewDecoder(buf, binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8})
	d.Skip(len(Signature))
	sb := &Superblock{Version: d.Uint8()}

	switch sb.Version {
	case 0, 1:
		d.Skip(4) // free space, root entry and shared header versions, reserved
		sb.OffsetSize = d.Uint8()
		sb.LengthSize = d.Uint8()
		d.Skip(1 + 4 + 4) // reserved, group K values, consistency flags
		if sb.Version == 1 {
			d.Skip(4) // indexed storage K and reserved
		}
	case 2, 3:
		sb.OffsetSize = d.Uint8()
		sb.LengthSize = d.Uint8()
		d.Skip(1) // consistency flags
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sb.Version)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !validWidth(sb.OffsetSize) || !validWidth(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}

	start := d.Pos()
	d = binpkg.NewDecoder(buf, sb.Config())
	d.Skip(start)
	sb.BaseAddress = d.Offset()

	if sb.Version >= 2 {
		d.Skip(int(sb.OffsetSize)) // extension address
		sb.EOFAddress = d.Offset()
		sb.RootGroupAddress = d.Offset()
		end := d.Pos()
		if sum := d.Uint32(); d.Err() == nil && sum != binpkg.Lookup3Checksum(buf[:end]) {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
		}
		return sb, d.Err()
	}

	d.Skip(int(sb.OffsetSize)) // free space address
	sb.EOFAddress = d.Offset()
	d.Skip(int(sb.OffsetSize)) // driver info address

	// Root group symbol table entry.
	d.Skip(int(sb.OffsetSize)) // name offset
	sb.RootGroupAddress = d.Offset()
	if cache := d.Uint32(); cache == 1 {
		d.Skip(4)
		sb.RootGroupBTreeAddress = d.Offset()
		sb.RootGroupLocalHeapAddress = d.Offset()
	}
	return sb, d.Err()
}

func validWidth(n uint8) bool { return n == 2 || n == 4 || n == 8 }

// Config returns the binary layout used by everything else in the file.
// HDF5 metadata is always little-endian.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

package superblock

import (
	binpkg "github.com/robert-malhotra/h5cat/internal/binary"
)

// New returns a version 3 superblock with eight-byte addresses.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Encode returns sb as a version 2 or 3 superblock with its checksum.
// There is never a superblock extension.
func (sb *Superblock) Encode() []byte {
	e := binpkg.NewEncoder(sb.Config())
	e.Write(Signature)
	e.Uint8(max(sb.Version, 2))
	e.Uint8(sb.OffsetSize)
	e.Uint8(sb.LengthSize)
	e.Uint8(0)
	e.Offset(sb.BaseAddress)
	e.Offset(e.Undefined())
	e.Offset(sb.EOFAddress)
	e.Offset(sb.RootGroupAddress)
	e.Checksum()
	return e.Bytes()
}

// Size returns the encoded size of sb.
func (sb *Superblock) Size() int {
	return len(Signature) + 4 + 4*int(sb.OffsetSize) + 4
}

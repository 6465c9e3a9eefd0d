// Package alloc assigns file addresses to the blocks of a new HDF5 file.
package alloc

import "sync/atomic"

// Allocator places each block at the end of the file. Space is never
// reclaimed, so a header written twice leaves its first copy behind.
type Allocator struct {
	end atomic.Uint64
}

// New returns an Allocator whose first block starts at base, the first
// byte after the superblock.
func New(base uint64) *Allocator {
	a := &Allocator{}
	a.end.Store(base)
	return a
}

// Alloc reserves size bytes and returns their address.
func (a *Allocator) Alloc(size uint64) uint64 {
	return a.end.Add(size) - size
}

// EOFAddr returns the address one past the last reserved byte.
func (a *Allocator) EOFAddr() uint64 { return a.end.Load() }

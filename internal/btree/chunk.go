package btree

import (
	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Chunk is one stored chunk of a dataset.
type Chunk struct {
	// Origin is the dataset coordinate of the chunk's first element.
	Origin []uint64
	Addr   uint64
	Size   uint64
	Mask   uint32
}

// ReadChunks lists the chunks indexed by the tree at addr for a dataset
// of the given rank. Keys hold the stored size, the filter mask and rank+1
// coordinates whose last entry is the element offset, always zero.
func ReadChunks(r *binary.Reader, addr uint64, rank int) ([]Chunk, error) {
	var out []Chunk
	keySize := 4 + 4 + 8*(rank+1)
	err := walk(r, addr, chunkNode, keySize, func(key *binary.Decoder, child uint64) error {
		c := Chunk{Size: uint64(key.Uint32()), Mask: key.Uint32(), Addr: child}
		c.Origin = make([]uint64, rank)
		for i := range c.Origin {
			c.Origin[i] = key.Uint64()
		}
		if c.Size > 0 && !r.IsUndefinedOffset(child) {
			out = append(out, c)
		}
		return key.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

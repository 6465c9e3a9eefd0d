package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	binpkg "github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// Deflate inflates zlib streams. The level in the client data only
// matters when writing.
type Deflate struct {
	limit int64 // 0 means unbounded
}

func NewDeflate([]uint32) *Deflate { return &Deflate{} }

func (*Deflate) ID() uint16 { return message.FilterDeflate }

func (d *Deflate) Decode(input []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	defer zr.Close()
	var src io.Reader = zr
	if d.limit > 0 {
		src = io.LimitReader(zr, d.limit+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if d.limit > 0 && int64(len(out)) > d.limit {
		return nil, fmt.Errorf("deflate: stream inflates past %d bytes", d.limit)
	}
	return out, nil
}

// Shuffle regroups bytes that were stored by significance: first byte of
// every element, then the second byte, and so on.
type Shuffle struct {
	size int
}

// NewShuffle reads the element size from the first client data value.
func NewShuffle(clientData []uint32) *Shuffle {
	s := &Shuffle{size: 1}
	if len(clientData) > 0 && clientData[0] > 1 {
		s.size = int(clientData[0])
	}
	return s
}

func (*Shuffle) ID() uint16 { return message.FilterShuffle }

// Decode leaves bytes past the last whole element where they are.
func (s *Shuffle) Decode(input []byte) ([]byte, error) {
	n := len(input) / s.size
	if s.size == 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for b := 0; b < s.size; b++ {
		plane := input[b*n : (b+1)*n]
		for e, v := range plane {
			out[e*s.size+b] = v
		}
	}
	copy(out[n*s.size:], input[n*s.size:])
	return out, nil
}

// Fletcher32 strips and verifies the checksum appended to each chunk.
type Fletcher32 struct{}

func NewFletcher32([]uint32) *Fletcher32 { return &Fletcher32{} }

func (*Fletcher32) ID() uint16 { return message.FilterFletcher32 }

// Decode also accepts a checksum with the bytes of each half swapped,
// which some old writers stored.
func (*Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes is too short", len(input))
	}
	data, tail := input[:len(input)-4], input[len(input)-4:]
	stored := binary.LittleEndian.Uint32(tail)
	sum := binpkg.Fletcher32(data)
	if stored != sum && stored != swapHalves(sum) {
		return nil, fmt.Errorf("fletcher32: stored checksum %#08x, computed %#08x", stored, sum)
	}
	return data, nil
}

func swapHalves(v uint32) uint32 {
	return v&0x00ff00ff<<8 | v>>8&0x00ff00ff
}

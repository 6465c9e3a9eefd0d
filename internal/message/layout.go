package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType selects the chunk index of a version 4 chunked layout.
// Earlier versions always use a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// DataLayout says where the raw data of a dataset lives.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	Address uint64 // contiguous data
	Size    uint64

	// ChunkDims holds one entry per dataset dimension followed by the
	// element size in bytes.
	ChunkDims      []uint32
	ChunkIndexType ChunkIndexType
	ChunkIndexAddr uint64

	// Single chunk index with filters applied.
	FilteredChunkSize uint64
	FilterMask        uint32

	// PageBits is the fixed array page size exponent.
	PageBits uint8
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// Filtered reports whether a version 4 single-chunk layout stores its
// chunk through the filter pipeline.
func (m *DataLayout) Filtered() bool { return m.FilteredChunkSize > 0 }

func decodeDataLayout(d *binary.Decoder) (*DataLayout, error) {
	m := &DataLayout{Version: d.Uint8()}
	switch m.Version {
	case 1, 2:
		decodeLayoutV1(d, m)
	case 3, 4:
		decodeLayoutV3(d, m)
	default:
		if d.Err() == nil {
			return nil, fmt.Errorf("unsupported data layout version %d", m.Version)
		}
	}
	return m, d.Err()
}

// Versions 1 and 2 share one field order for every class. The contiguous
// size is left zero and derived from the dataspace by the reader.
func decodeLayoutV1(d *binary.Decoder, m *DataLayout) {
	dims := make([]uint32, d.Uint8())
	m.Class = LayoutClass(d.Uint8())
	d.Skip(5)
	switch m.Class {
	case LayoutContiguous:
		m.Address = d.Offset()
	case LayoutChunked:
		m.ChunkIndexAddr = d.Offset()
	}
	for i := range dims {
		dims[i] = d.Uint32()
	}
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.Bytes(int(d.Uint32()))
	case LayoutChunked:
		m.ChunkDims = dims
	}
}

func decodeLayoutV3(d *binary.Decoder, m *DataLayout) {
	m.Class = LayoutClass(d.Uint8())
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.Bytes(int(d.Uint16()))
	case LayoutContiguous:
		m.Address = d.Offset()
		m.Size = d.Length()
	case LayoutChunked:
		if m.Version == 3 {
			m.ChunkDims = make([]uint32, d.Uint8())
			m.ChunkIndexAddr = d.Offset()
			for i := range m.ChunkDims {
				m.ChunkDims[i] = d.Uint32()
			}
			return
		}
		flags := d.Uint8()
		m.ChunkDims = make([]uint32, d.Uint8())
		width := int(d.Uint8())
		for i := range m.ChunkDims {
			m.ChunkDims[i] = uint32(d.UintN(width))
		}
		m.ChunkIndexType = ChunkIndexType(d.Uint8())
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if flags&0x02 != 0 {
				m.FilteredChunkSize = d.Length()
				m.FilterMask = d.Uint32()
			}
		case ChunkIndexFixedArray:
			m.PageBits = d.Uint8()
		case ChunkIndexExtensibleArray:
			d.Skip(5)
		case ChunkIndexBTreeV2:
			d.Skip(6)
		}
		m.ChunkIndexAddr = d.Offset()
	case LayoutVirtual:
		d.Fail(fmt.Errorf("virtual datasets are not supported"))
	}
}

// Encode writes version 3 compact and contiguous layouts and version 4
// chunked layouts.
func (m *DataLayout) Encode(e *binary.Encoder) {
	if m.Class != LayoutChunked {
		e.Uint8(3)
		e.Uint8(uint8(m.Class))
		if m.Class == LayoutCompact {
			e.Uint16(uint16(len(m.CompactData)))
			e.Write(m.CompactData)
		} else {
			e.Offset(m.Address)
			e.Length(m.Size)
		}
		return
	}

	var flags uint8
	if m.ChunkIndexType == ChunkIndexSingleChunk && m.Filtered() {
		flags = 0x02
	}
	width := 1
	for _, v := range m.ChunkDims {
		for width < 8 && uint64(v) >= 1<<(8*width) {
			width++
		}
	}
	e.Uint8(4)
	e.Uint8(uint8(LayoutChunked))
	e.Uint8(flags)
	e.Uint8(uint8(len(m.ChunkDims)))
	e.Uint8(uint8(width))
	for _, v := range m.ChunkDims {
		e.UintN(uint64(v), width)
	}
	e.Uint8(uint8(m.ChunkIndexType))
	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if flags != 0 {
			e.Length(m.FilteredChunkSize)
			e.Uint32(m.FilterMask)
		}
	case ChunkIndexFixedArray:
		e.Uint8(m.PageBits)
	}
	e.Offset(m.ChunkIndexAddr)
}

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewContiguousLayout points at size bytes stored at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout for chunks of
// chunkDims elements of elemSize bytes. The index address is filled in
// once the index is written.
func NewChunkedLayout(chunkDims []uint32, elemSize uint32, index ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elemSize)
	return &DataLayout{
		Version:        4,
		Class:          LayoutChunked,
		ChunkDims:      dims,
		ChunkIndexType: index,
	}
}

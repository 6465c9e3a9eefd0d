package message

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// DataspaceType is the kind of a dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace gives the shape of a dataset or attribute.
type Dataspace struct {
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when equal to Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the number of elements: 1 for a scalar, 0 for null.
// It saturates at math.MaxUint64 when the extents overflow.
func (m *Dataspace) NumElements() uint64 {
	n, err := m.Bytes(1)
	if err != nil {
		return math.MaxUint64
	}
	return n
}

// Bytes returns the size of the dataspace for elements of elemSize bytes.
func (m *Dataspace) Bytes(elemSize uint64) (uint64, error) {
	switch m.SpaceType {
	case DataspaceScalar:
		return elemSize, nil
	case DataspaceSimple:
		n := elemSize
		for _, d := range m.Dimensions {
			hi, lo := bits.Mul64(n, d)
			if hi != 0 {
				return 0, fmt.Errorf("dataspace %v of %d-byte elements overflows 64 bits", m.Dimensions, elemSize)
			}
			n = lo
		}
		return n, nil
	default:
		return 0, nil
	}
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

// Version 1 has no type byte: rank 0 means scalar. It also carries four
// reserved bytes before the dimensions.
func decodeDataspace(d *binary.Decoder) (*Dataspace, error) {
	version := d.Uint8()
	m := &Dataspace{Rank: int(d.Uint8())}
	flags := d.Uint8()

	switch version {
	case 1:
		d.Skip(5)
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(d.Uint8())
	default:
		if d.Err() == nil {
			return nil, fmt.Errorf("unsupported dataspace version %d", version)
		}
	}
	if m.SpaceType != DataspaceSimple {
		m.Rank = 0
		return m, d.Err()
	}

	m.Dimensions = make([]uint64, m.Rank)
	for i := range m.Dimensions {
		m.Dimensions[i] = d.Length()
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, m.Rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = d.Length()
		}
	}
	return m, d.Err()
}

// Encode writes a version 2 dataspace.
func (m *Dataspace) Encode(e *binary.Encoder) {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	e.Uint8(2)
	e.Uint8(uint8(len(m.Dimensions)))
	e.Uint8(flags)
	e.Uint8(uint8(m.SpaceType))
	for _, v := range m.Dimensions {
		e.Length(v)
	}
	if flags != 0 {
		for _, v := range m.MaxDims {
			e.Length(v)
		}
	}
}

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace { return &Dataspace{SpaceType: DataspaceScalar} }

func NewNullDataspace() *Dataspace { return &Dataspace{SpaceType: DataspaceNull} }

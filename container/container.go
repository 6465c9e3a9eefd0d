// Package container describes the read-only view of a hierarchical container
// that the catalog and extractor work against.
//
// An Opener produces a Container handle; a Container hands out Dataset
// handles. Every handle must be closed by whoever obtained it.
package container

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrNotFound   = errors.New("container object not found")
	ErrNotDataset = errors.New("container object is not a dataset")
	ErrClosed     = errors.New("container has been closed")
	ErrOverflow   = errors.New("element count overflows 64 bits")
)

// TypeClass is the broad element class of a dataset.
type TypeClass int

const (
	ClassOther TypeClass = iota
	ClassInteger
	ClassFloat
	ClassString
)

func (c TypeClass) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassString:
		return "string"
	default:
		return "other"
	}
}

// Dataspace is the extent of a dataset. Dims is empty for scalar and null
// dataspaces; a null dataspace holds no elements at all.
type Dataspace struct {
	Dims   []uint64
	Scalar bool
	Null   bool
}

// Rank returns the number of dimensions.
func (s Dataspace) Rank() int {
	return len(s.Dims)
}

// Elements returns the product of the extents. The empty product is 1, so a
// scalar has one element. A null dataspace has none. It fails with
// ErrOverflow when the product does not fit in a uint64.
func (s Dataspace) Elements() (uint64, error) {
	if s.Null {
		return 0, nil
	}
	n := uint64(1)
	for _, d := range s.Dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, fmt.Errorf("%w: extents %v", ErrOverflow, s.Dims)
		}
		n = lo
	}
	return n, nil
}

// Attribute is one decoded name/value pair attached to a dataset. Err is set
// when the value could not be decoded; Value is nil in that case.
type Attribute struct {
	Name  string
	Value any
	Err   error
}

// Opener opens a container by path.
type Opener interface {
	Open(path string) (Container, error)
}

// Container is an open file whose groups hold datasets.
type Container interface {
	// Links returns the names of the direct children of group ("/" for the
	// root), sorted by name.
	Links(group string) ([]string, error)
	// OpenDataset opens a dataset by its path relative to the root group.
	OpenDataset(name string) (Dataset, error)
	Close() error
}

// Dataset is an open dataset handle. Close releases it.
type Dataset interface {
	Name() string
	Dataspace() (Dataspace, error)
	TypeClass() TypeClass
	// ReadFloat64 reads every element in row-major order, converting integer
	// and floating-point values to float64.
	ReadFloat64() ([]float64, error)
	Attributes() ([]Attribute, error)
	Close() error
}

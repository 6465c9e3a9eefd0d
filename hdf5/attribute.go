package hdf5

import (
	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/dtype"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// Attribute is a small named value attached to a dataset.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader
}

func (a *Attribute) Name() string { return a.msg.Name }

// Shape returns the dimensions of the value; nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace.SpaceType != message.DataspaceSimple {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) NumElements() uint64 { return a.msg.Dataspace.NumElements() }

func (a *Attribute) IsScalar() bool { return a.msg.Dataspace.IsScalar() }

func (a *Attribute) DtypeClass() message.DatatypeClass { return a.msg.Datatype.Class }

// Read decodes the value into dest like Dataset.Read.
func (a *Attribute) Read(dest any) error {
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

func (a *Attribute) ReadFloat64() ([]float64, error) {
	var out []float64
	err := a.Read(&out)
	return out, err
}

func (a *Attribute) ReadInt64() ([]int64, error) {
	var out []int64
	err := a.Read(&out)
	return out, err
}

func (a *Attribute) ReadString() ([]string, error) {
	var out []string
	err := a.Read(&out)
	return out, err
}

// Value returns the attribute as a Go value: int64, uint64, float64 or
// string for a scalar, a slice of those otherwise. Signed integers and
// enums give int64. Other classes come back in their natural slice form.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	switch {
	case dt.Class == message.ClassFixedPoint && !dt.Signed:
		var vals []uint64
		err := a.Read(&vals)
		return scalarOrSlice(a, vals, err)
	case dt.Class == message.ClassFixedPoint, dt.Class == message.ClassEnum:
		vals, err := a.ReadInt64()
		return scalarOrSlice(a, vals, err)
	case dt.Class == message.ClassFloatPoint:
		vals, err := a.ReadFloat64()
		return scalarOrSlice(a, vals, err)
	case dt.IsString():
		vals, err := a.ReadString()
		return scalarOrSlice(a, vals, err)
	}
	var v any
	if err := a.Read(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func scalarOrSlice[T any](a *Attribute, vals []T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if a.IsScalar() && len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}

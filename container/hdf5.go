package container

import (
	"errors"
	"fmt"
	"sort"

	"github.com/robert-malhotra/h5cat/hdf5"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// HDF5 opens containers with the pure Go HDF5 reader.
type HDF5 struct{}

// Open opens the file at path read-only.
func (HDF5) Open(path string) (Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	return &hdf5File{f: f}, nil
}

type hdf5File struct {
	f      *hdf5.File
	closed bool
}

func (h *hdf5File) Links(group string) ([]string, error) {
	if h.closed {
		return nil, ErrClosed
	}
	g := h.f.Root()
	if group != "" && group != "/" {
		var err error
		if g, err = h.f.OpenGroup(group); err != nil {
			return nil, mapErr(err)
		}
	}
	names, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", group, err)
	}
	sort.Strings(names)
	return names, nil
}

func (h *hdf5File) OpenDataset(name string) (Dataset, error) {
	if h.closed {
		return nil, ErrClosed
	}
	ds, err := h.f.OpenDataset(name)
	if err != nil {
		return nil, mapErr(err)
	}
	return &hdf5Dataset{ds: ds}, nil
}

func (h *hdf5File) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.f.Close()
}

// mapErr keeps the reader's message but makes the container sentinels
// matchable with errors.Is.
func mapErr(err error) error {
	switch {
	case errors.Is(err, hdf5.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, hdf5.ErrNotDataset):
		return fmt.Errorf("%w: %w", ErrNotDataset, err)
	default:
		return err
	}
}

type hdf5Dataset struct {
	ds *hdf5.Dataset
}

func (d *hdf5Dataset) Name() string { return d.ds.Name() }

func (d *hdf5Dataset) Dataspace() (Dataspace, error) {
	space := Dataspace{
		Scalar: d.ds.IsScalar(),
		Null:   d.ds.IsNull(),
	}
	if shape := d.ds.Shape(); shape != nil {
		space.Dims = append([]uint64(nil), shape...)
	}
	return space, nil
}

func (d *hdf5Dataset) TypeClass() TypeClass {
	if d.ds.IsString() {
		return ClassString
	}
	return classOf(d.ds.DtypeClass())
}

func classOf(c message.DatatypeClass) TypeClass {
	switch c {
	case message.ClassFixedPoint:
		return ClassInteger
	case message.ClassFloatPoint:
		return ClassFloat
	case message.ClassString:
		return ClassString
	default:
		return ClassOther
	}
}

func (d *hdf5Dataset) ReadFloat64() ([]float64, error) {
	return d.ds.ReadFloat64()
}

func (d *hdf5Dataset) Attributes() ([]Attribute, error) {
	attrs := d.ds.Attributes()
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		v, err := a.Value()
		out = append(out, Attribute{Name: a.Name(), Value: v, Err: err})
	}
	return out, nil
}

// Close is a no-op; dataset state lives in the file handle.
func (d *hdf5Dataset) Close() error { return nil }

// Package layout reads and writes the raw bytes of a dataset according to
// its storage layout.
package layout

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/filter"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// Layout returns the decoded bytes of a whole dataset in row-major order.
type Layout interface {
	Read() ([]byte, error)
}

// Dataset gathers the header messages a layout needs. Filters and Fill
// may be nil.
type Dataset struct {
	Layout  *message.DataLayout
	Space   *message.Dataspace
	Type    *message.Datatype
	Filters *message.FilterPipeline
	Fill    *message.FillValue
}

// MaxBytes bounds the decoded size of one dataset.
const MaxBytes = 1 << 36

func (ds *Dataset) size() (uint64, error) {
	n, err := ds.Space.Bytes(uint64(ds.Type.Size))
	if err != nil {
		return 0, err
	}
	if n > MaxBytes {
		return 0, fmt.Errorf("dataset of %d bytes exceeds the %d byte read limit", n, uint64(MaxBytes))
	}
	return n, nil
}

// filled returns n bytes holding the fill value, or zeros when there is
// none.
func (ds *Dataset) filled(n uint64) []byte {
	if ds.Fill == nil || len(ds.Fill.Value) == 0 {
		return make([]byte, n)
	}
	out := bytes.Repeat(ds.Fill.Value, int(n)/len(ds.Fill.Value)+1)
	return out[:n]
}

// New picks the reader for the storage class of ds.
func New(ds Dataset, r *binary.Reader) (Layout, error) {
	if ds.Layout == nil || ds.Space == nil || ds.Type == nil {
		return nil, fmt.Errorf("dataset needs layout, dataspace and datatype messages")
	}

	switch ds.Layout.Class {
	case message.LayoutCompact:
		return compact(ds.Layout.CompactData), nil
	case message.LayoutContiguous:
		return &contiguous{ds: &ds, r: r}, nil
	case message.LayoutChunked:
		pipeline, err := filter.NewPipeline(ds.Filters)
		if err != nil {
			return nil, err
		}
		return &chunked{ds: &ds, pipeline: pipeline, r: r}, nil
	default:
		return nil, fmt.Errorf("unsupported layout class %d", ds.Layout.Class)
	}
}

type compact []byte

func (c compact) Read() ([]byte, error) { return bytes.Clone(c), nil }

type contiguous struct {
	ds *Dataset
	r  *binary.Reader
}

// Read returns the fill value for storage that was never allocated.
func (c *contiguous) Read() ([]byte, error) {
	size, err := c.ds.size()
	if err != nil {
		return nil, err
	}
	addr := c.ds.Layout.Address
	if c.r.IsUndefinedOffset(addr) {
		return c.ds.filled(size), nil
	}
	if size == 0 {
		return []byte{}, nil
	}
	data, err := c.r.At(int64(addr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data at %d: %w", addr, err)
	}
	return data, nil
}

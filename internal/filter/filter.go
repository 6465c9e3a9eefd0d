// Package filter undoes the filter pipeline that chunked datasets are
// written through.
package filter

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/h5cat/internal/message"
)

// Filter reverses one filter stage.
type Filter interface {
	ID() uint16
	Decode(input []byte) ([]byte, error)
}

var constructors = map[uint16]func(clientData []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
}

// Filters that are recognized but cannot be decoded.
var unsupported = map[uint16]string{
	message.FilterSZIP:        "SZIP",
	message.FilterNBit:        "N-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New returns the filter described by info. An optional filter that is
// not available yields nil and no error.
func New(info message.FilterInfo) (Filter, error) {
	if c, ok := constructors[info.ID]; ok {
		return c(info.ClientData), nil
	}
	switch name, known := unsupported[info.ID]; {
	case info.IsOptional():
		return nil, nil
	case known:
		return nil, fmt.Errorf("%s filter (ID %d) is not supported", name, info.ID)
	default:
		return nil, fmt.Errorf("unsupported filter ID %d", info.ID)
	}
}

// Pipeline decodes chunks in the reverse of the order they were filtered.
// Unavailable optional filters keep their position as nil entries, so the
// bits of a chunk's filter mask still line up.
type Pipeline struct {
	filters []Filter
}

func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		p.filters = append(p.filters, f)
	}
	return p, nil
}

// Decode runs the pipeline backwards over data. Bit i of mask set means
// filter i was not applied to this chunk.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.filters) - 1; i >= 0; i-- {
		f := p.filters[i]
		if f == nil || mask&(1<<i) != 0 {
			continue
		}
		var err error
		if data, err = f.Decode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, nil
}

// Bound caps the output of inflating stages for chunks that decode to n
// bytes. Checksum stages may sit inside a compressor, so each adds its
// trailer to the cap.
func (p *Pipeline) Bound(n uint64) {
	for _, f := range p.filters {
		if _, ok := f.(*Fletcher32); ok {
			n += 4
		}
	}
	for _, f := range p.filters {
		if d, ok := f.(*Deflate); ok {
			d.limit = int64(min(n, math.MaxInt64-1))
		}
	}
}

// Len returns the number of stages, including skipped optional ones.
func (p *Pipeline) Len() int { return len(p.filters) }

func (p *Pipeline) Empty() bool { return len(p.filters) == 0 }

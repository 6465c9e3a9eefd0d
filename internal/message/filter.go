package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Registered filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter may be skipped when it fails.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Version 1 pads names and client data to eight bytes. Version 2 drops
// the name length for the predefined filters below 256.
func decodeFilterPipeline(d *binary.Decoder) (*FilterPipeline, error) {
	m := &FilterPipeline{Version: d.Uint8()}
	m.Filters = make([]FilterInfo, d.Uint8())
	switch m.Version {
	case 1:
		d.Skip(6)
	case 2:
	default:
		if d.Err() == nil {
			return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
		}
	}

	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = d.Uint16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.Uint16())
		}
		f.Flags = d.Uint16()
		f.ClientData = make([]uint32, d.Uint16())
		if nameLen > 0 {
			name := d.Bytes(nameLen)
			f.Name = cstring(name)
			if m.Version == 1 && nameLen%8 != 0 {
				d.Skip(8 - nameLen%8)
			}
		}
		for j := range f.ClientData {
			f.ClientData[j] = d.Uint32()
		}
		if m.Version == 1 && len(f.ClientData)%2 != 0 {
			d.Skip(4)
		}
	}
	return m, d.Err()
}

// cstring cuts b at its first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

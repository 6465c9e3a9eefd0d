package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// FillValue holds the value unwritten elements read back as. Value is nil
// when no fill value is defined, which means zero bytes.
type FillValue struct {
	Version uint8
	Value   []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func decodeFillValue(d *binary.Decoder) (*FillValue, error) {
	m := &FillValue{Version: d.Uint8()}
	switch m.Version {
	case 1, 2:
		d.Skip(2) // allocation and write times
		if d.Uint8() != 0 && d.Remaining() >= 4 {
			m.Value = d.Bytes(int(d.Uint32()))
		}
	case 3:
		if flags := d.Uint8(); flags&0x20 != 0 {
			m.Value = d.Bytes(int(d.Uint32()))
		}
	default:
		if d.Err() == nil {
			return nil, fmt.Errorf("unsupported fill value version %d", m.Version)
		}
	}
	if len(m.Value) == 0 {
		m.Value = nil
	}
	return m, d.Err()
}

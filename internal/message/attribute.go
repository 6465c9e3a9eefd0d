package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Attribute is a small named value stored in an object header.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Version 1 pads the name, datatype and dataspace to eight bytes each.
// Version 3 adds a name encoding byte.
func decodeAttribute(d *binary.Decoder) (*Attribute, error) {
	version := d.Uint8()
	if version < 1 || version > 3 {
		if d.Err() == nil {
			return nil, fmt.Errorf("unsupported attribute version %d", version)
		}
		return nil, d.Err()
	}
	d.Skip(1) // flags
	nameSize := int(d.Uint16())
	typeSize := int(d.Uint16())
	spaceSize := int(d.Uint16())
	if version == 3 {
		d.Skip(1)
	}

	field := func(n int) []byte {
		b := d.Bytes(n)
		if version == 1 {
			d.Align(8)
		}
		return b
	}

	m := &Attribute{Name: cstring(field(nameSize))}
	var err error
	if m.Datatype, err = decodeDatatype(binary.NewDecoder(field(typeSize), d.Config())); err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", m.Name, err)
	}
	if m.Dataspace, err = decodeDataspace(binary.NewDecoder(field(spaceSize), d.Config())); err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", m.Name, err)
	}
	m.Data = d.Rest()
	return m, d.Err()
}

// Encode writes a version 3 attribute with an ASCII name.
func (m *Attribute) Encode(e *binary.Encoder) {
	dt := Encode(m.Datatype, e.Config())
	ds := Encode(m.Dataspace, e.Config())
	e.Uint8(3)
	e.Uint8(0)
	e.Uint16(uint16(len(m.Name) + 1))
	e.Uint16(uint16(len(dt)))
	e.Uint16(uint16(len(ds)))
	e.Uint8(uint8(CharsetASCII))
	e.CString(m.Name)
	e.Write(dt)
	e.Write(ds)
	e.Write(m.Data)
}

// NewAttribute returns an attribute holding data encoded as datatype.
func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}

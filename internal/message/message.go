// Package message decodes and encodes the header messages stored in HDF5
// object headers.
package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Type identifies a header message.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeDataLayout               Type = 0x08
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Encodable messages can be written to a new object header.
type Encodable interface {
	Message
	Encode(e *binary.Encoder)
}

// Encode returns the body of msg encoded with cfg.
func Encode(msg Encodable, cfg binary.Config) []byte {
	e := binary.NewEncoder(cfg)
	msg.Encode(e)
	return e.Bytes()
}

// Parse decodes the body of a message of type typ. Types this package does
// not model come back as *Unknown.
func Parse(typ Type, data []byte, cfg binary.Config) (Message, error) {
	d := binary.NewDecoder(data, cfg)

	var (
		msg Message
		err error
	)
	switch typ {
	case TypeDataspace:
		msg, err = decodeDataspace(d)
	case TypeLinkInfo:
		msg, err = decodeLinkInfo(d)
	case TypeDatatype:
		msg, err = decodeDatatype(d)
	case TypeFillValue:
		msg, err = decodeFillValue(d)
	case TypeLink:
		msg, err = decodeLink(d)
	case TypeDataLayout:
		msg, err = decodeDataLayout(d)
	case TypeFilterPipeline:
		msg, err = decodeFilterPipeline(d)
	case TypeAttribute:
		msg, err = decodeAttribute(d)
	case TypeObjectHeaderContinuation:
		msg = &Continuation{Offset: d.Offset(), Length: d.Length()}
		err = d.Err()
	case TypeSymbolTable:
		msg = &SymbolTable{BTreeAddress: d.Offset(), LocalHeapAddress: d.Offset()}
		err = d.Err()
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message type 0x%02x: %w", uint16(typ), err)
	}
	return msg, nil
}

// Unknown keeps the raw body of a message type that is not decoded.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

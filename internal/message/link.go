package message

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// LinkType is the kind of a link.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link names a child of a group stored in the group's object header.
type Link struct {
	LinkType LinkType
	Name     string

	ObjectAddress uint64 // hard
	SoftLinkValue string // soft: absolute or relative path

	ExternalFile string
	ExternalPath string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

// Link flags.
const (
	linkNameWidth     = 0x03
	linkHasOrder      = 0x04
	linkHasType       = 0x08
	linkHasCharset    = 0x10
	linkVersion       = 1
	externalLinkFlags = 0
)

func decodeLink(d *binary.Decoder) (*Link, error) {
	if v := d.Uint8(); v != linkVersion && d.Err() == nil {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := d.Uint8()
	m := &Link{}
	if flags&linkHasType != 0 {
		m.LinkType = LinkType(d.Uint8())
	}
	if flags&linkHasOrder != 0 {
		d.Skip(8)
	}
	if flags&linkHasCharset != 0 {
		d.Skip(1)
	}
	m.Name = string(d.Bytes(int(d.UintN(1 << (flags & linkNameWidth)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = d.Offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(d.Bytes(int(d.Uint16())))
	case LinkTypeExternal:
		ext := binary.NewDecoder(d.Bytes(int(d.Uint16())), d.Config())
		ext.Skip(1) // version and flags
		m.ExternalFile = ext.CString()
		m.ExternalPath = ext.CString()
		if err := ext.Err(); err != nil {
			return nil, fmt.Errorf("external link %q: %w", m.Name, err)
		}
	default:
		// User-defined link types carry an opaque value.
		d.Bytes(int(d.Uint16()))
	}
	return m, d.Err()
}

// Encode writes a version 1 link with the smallest name length field.
func (m *Link) Encode(e *binary.Encoder) {
	var flags uint8
	for n := len(m.Name); flags < 3 && uint64(n) >= 1<<(8<<flags); {
		flags++
	}
	width := 1 << flags
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}

	e.Uint8(linkVersion)
	e.Uint8(flags)
	if m.LinkType != LinkTypeHard {
		e.Uint8(uint8(m.LinkType))
	}
	e.UintN(uint64(len(m.Name)), width)
	e.Write([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.Offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.Uint16(uint16(len(m.SoftLinkValue)))
		e.Write([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.Uint16(uint16(1 + len(m.ExternalFile) + 1 + len(m.ExternalPath) + 1))
		e.Uint8(externalLinkFlags)
		e.CString(m.ExternalFile)
		e.CString(m.ExternalPath)
	}
}

func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

func NewExternalLink(name, file, target string) *Link {
	return &Link{LinkType: LinkTypeExternal, Name: name, ExternalFile: file, ExternalPath: target}
}

// LinkInfo describes how a new-style group stores its links. A defined
// FractalHeapAddr means the links live in dense storage rather than in
// Link messages.
type LinkInfo struct {
	FractalHeapAddr    uint64
	NameIndexBTreeAddr uint64

	dense bool
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func decodeLinkInfo(d *binary.Decoder) (*LinkInfo, error) {
	d.Skip(1) // version
	flags := d.Uint8()
	if flags&0x01 != 0 {
		d.Skip(8) // maximum creation index
	}
	m := &LinkInfo{FractalHeapAddr: d.Offset(), NameIndexBTreeAddr: d.Offset()}
	m.dense = m.FractalHeapAddr != d.Undefined()
	return m, d.Err()
}

// Dense reports whether the links are kept in a fractal heap.
func (m *LinkInfo) Dense() bool { return m.dense }

// Encode writes link info for compact storage: no creation order and no
// dense storage addresses.
func (m *LinkInfo) Encode(e *binary.Encoder) {
	e.Uint8(0)
	e.Uint8(0)
	e.Offset(e.Undefined())
	e.Offset(e.Undefined())
}

func NewLinkInfo() *LinkInfo { return &LinkInfo{} }

// GroupInfo carries the group storage hints; only defaults are written.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Encode(e *binary.Encoder) {
	e.Uint8(0)
	e.Uint8(0)
}

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }

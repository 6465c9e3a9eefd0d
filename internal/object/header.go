// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset.
package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksum           = errors.New("object header checksum mismatch")
)

// maxContinuations bounds the continuation blocks followed for one header
// so a cycle in a corrupt file cannot loop forever.
const maxContinuations = 1024

// Header is a decoded object header.
type Header struct {
	Version  uint8
	Address  uint64
	Messages []message.Message

	// Shared lists the types of messages stored elsewhere in the file,
	// such as committed datatypes. They are not decoded.
	Shared []message.Type
}

// Read decodes the object header at address, following continuation
// blocks. Version 1 headers start with a version byte, version 2 headers
// with the OHDR signature.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	peek, err := r.At(int64(address)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}

	h := &Header{Address: address}
	switch {
	case string(peek) == "OHDR":
		h.Version = 2
		err = h.readV2(r)
	case peek[0] == 1:
		h.Version = 1
		err = h.readV1(r)
	default:
		err = ErrInvalidHeader
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	return h, nil
}

// sharedMessage marks a message whose body points at the real message.
const sharedMessage = 0x02

// block is a run of messages not yet decoded.
type block struct {
	addr uint64
	size uint64
}

// Version 1: version, reserved, message count (2), reference count (4),
// header size (4), then messages padded to eight bytes from offset 16.
func (h *Header) readV1(r *binary.Reader) error {
	prefix, err := r.At(int64(h.Address)).ReadBytes(16)
	if err != nil {
		return err
	}
	d := binary.NewDecoder(prefix, r.Config())
	d.Skip(8)
	size := d.Uint32()

	pending := []block{{h.Address + 16, uint64(size)}}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		b := pending[0]
		pending = pending[1:]
		raw, err := r.At(int64(b.addr)).ReadBytes(int(b.size))
		if err != nil {
			return err
		}
		more, err := h.decodeMessages(binary.NewDecoder(raw, r.Config()), 1, 0)
		if err != nil {
			return err
		}
		pending = append(pending, more...)
	}
	return nil
}

// Version 2: OHDR, version, flags, optional times and attribute phase
// values, chunk size, messages and a checksum. Continuation blocks start
// with OCHK and end with their own checksum.
func (h *Header) readV2(r *binary.Reader) error {
	hr := r.At(int64(h.Address))
	head, err := hr.ReadBytes(6)
	if err != nil {
		return err
	}
	if head[4] != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[4])
	}
	flags := head[5]
	if flags&0x20 != 0 {
		hr.Skip(16)
	}
	if flags&0x10 != 0 {
		hr.Skip(4)
	}
	chunkSize, err := hr.ReadUintN(1 << (flags & 0x03))
	if err != nil {
		return err
	}
	prefixLen := uint64(hr.Pos()) - h.Address

	pending := []block{{h.Address, prefixLen + chunkSize + 4}}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		b := pending[0]
		pending = pending[1:]
		raw, err := r.At(int64(b.addr)).ReadBytes(int(b.size))
		if err != nil {
			return err
		}
		if len(raw) < 8 {
			return fmt.Errorf("%w: block of %d bytes", ErrInvalidHeader, len(raw))
		}
		body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
		if binary.Lookup3Checksum(body) != binary.NewDecoder(sum, r.Config()).Uint32() {
			return fmt.Errorf("%w at %d", ErrChecksum, b.addr)
		}

		d := binary.NewDecoder(body, r.Config())
		if b.addr == h.Address {
			d.Skip(int(prefixLen))
		} else if d.Expect("OCHK"); d.Err() != nil {
			return d.Err()
		}
		more, err := h.decodeMessages(d, 2, flags)
		if err != nil {
			return err
		}
		pending = append(pending, more...)
	}
	return nil
}

// decodeMessages appends the messages in d to h and returns the
// continuation blocks they point at.
func (h *Header) decodeMessages(d *binary.Decoder, version, flags uint8) ([]block, error) {
	var more []block
	// Fewer bytes than a message header left over is gap padding.
	minHeader := 8
	if version == 2 {
		minHeader = 4
	}
	for d.Remaining() >= minHeader {
		var (
			typ      message.Type
			size     int
			msgFlags uint8
		)
		if version == 1 {
			typ = message.Type(d.Uint16())
			size = int(d.Uint16())
			msgFlags = d.Uint8()
			d.Skip(3)
		} else {
			t := d.Uint8()
			if t == 0xFF {
				t = d.Uint8()
				size = int(d.Uint32())
			} else {
				size = int(d.Uint16())
			}
			typ = message.Type(t)
			msgFlags = d.Uint8()
			if flags&0x04 != 0 {
				d.Skip(2) // creation order
			}
		}
		data := d.Bytes(size)
		if version == 1 {
			d.Align(8)
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
		if typ == message.TypeNIL {
			continue
		}
		if msgFlags&sharedMessage != 0 {
			h.Shared = append(h.Shared, typ)
			continue
		}

		msg, err := message.Parse(typ, data, d.Config())
		if err != nil {
			return nil, err
		}
		if c, ok := msg.(*message.Continuation); ok {
			more = append(more, block{c.Offset, c.Length})
			continue
		}
		h.Messages = append(h.Messages, msg)
	}
	return more, nil
}

func first[T message.Message](h *Header) T {
	for _, m := range h.Messages {
		if t, ok := m.(T); ok {
			return t
		}
	}
	var zero T
	return zero
}

func all[T message.Message](h *Header) []T {
	var out []T
	for _, m := range h.Messages {
		if t, ok := m.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (h *Header) Dataspace() *message.Dataspace           { return first[*message.Dataspace](h) }
func (h *Header) Datatype() *message.Datatype             { return first[*message.Datatype](h) }
func (h *Header) DataLayout() *message.DataLayout         { return first[*message.DataLayout](h) }
func (h *Header) FilterPipeline() *message.FilterPipeline { return first[*message.FilterPipeline](h) }
func (h *Header) FillValue() *message.FillValue           { return first[*message.FillValue](h) }
func (h *Header) LinkInfo() *message.LinkInfo             { return first[*message.LinkInfo](h) }
func (h *Header) SymbolTable() *message.SymbolTable       { return first[*message.SymbolTable](h) }

// Links returns the links of a compact new-style group in header order.
func (h *Header) Links() []*message.Link { return all[*message.Link](h) }

// Attributes returns the compact attributes in header order.
func (h *Header) Attributes() []*message.Attribute { return all[*message.Attribute](h) }

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool { return h.DataLayout() != nil }

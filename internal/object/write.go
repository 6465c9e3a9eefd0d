package object

import (
	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
)

// MinGroupChunkSize leaves room in a group header for links added later,
// matching what h5py writes.
const MinGroupChunkSize = 120

// Encode returns a version 2 object header holding msgs. When minChunk is
// larger than the messages, a NIL message pads the chunk up to it.
func Encode(cfg binary.Config, msgs []message.Encodable, minChunk int) []byte {
	body := binary.NewEncoder(cfg)
	for _, m := range msgs {
		data := message.Encode(m, cfg)
		if len(data) > 0xFFFF {
			body.Uint8(0xFF)
			body.Uint8(uint8(m.Type()))
			body.Uint32(uint32(len(data)))
		} else {
			body.Uint8(uint8(m.Type()))
			body.Uint16(uint16(len(data)))
		}
		body.Uint8(0)
		body.Write(data)
	}

	// A NIL message needs four bytes for its own header.
	if pad := minChunk - body.Len(); pad > 0 {
		pad = max(pad, 4)
		body.Uint8(uint8(message.TypeNIL))
		body.Uint16(uint16(pad - 4))
		body.Uint8(0)
		body.Zeros(pad - 4)
	}

	width, code := 1, uint8(0)
	for ; width < 8 && uint64(body.Len()) >= 1<<(8*width); code++ {
		width *= 2
	}

	e := binary.NewEncoder(cfg)
	e.Write([]byte("OHDR"))
	e.Uint8(2)
	e.Uint8(code)
	e.UintN(uint64(body.Len()), width)
	e.Write(body.Bytes())
	e.Checksum()
	return e.Bytes()
}

// GroupMessages returns the messages of a compact new-style group.
func GroupMessages(links []*message.Link) []message.Encodable {
	msgs := []message.Encodable{message.NewLinkInfo(), message.NewGroupInfo()}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages returns the messages of a dataset header followed by
// its attributes.
func DatasetMessages(space *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, attrs []*message.Attribute) []message.Encodable {
	msgs := []message.Encodable{space, dt, layout}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

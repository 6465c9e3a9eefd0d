package btree

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/heap"
)

// Entry is one link of an old-style group.
type Entry struct {
	Name          string
	ObjectAddress uint64
	// SoftLinkValue is set for soft links, which have no object address.
	SoftLinkValue string
}

func (e Entry) IsSoft() bool { return e.SoftLinkValue != "" }

// Symbol table entry cache types.
const (
	cacheNone = 0
	cacheStab = 1
	cacheSoft = 2
)

// ReadGroup lists the links of the group whose B-tree is at addr. Names
// are resolved through the group's local heap.
func ReadGroup(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]Entry, error) {
	var out []Entry
	err := walk(r, addr, groupNode, r.Config().LengthSize, func(_ *binary.Decoder, snod uint64) error {
		entries, err := readSymbolNode(r, snod, names)
		out = append(out, entries...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readSymbolNode reads an SNOD: signature, version, reserved, symbol
// count and then the symbol table entries.
func readSymbolNode(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]Entry, error) {
	cfg := r.Config()
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, cfg)
	d.Expect("SNOD")
	if v := d.Uint8(); d.Err() == nil && v != 1 {
		return nil, fmt.Errorf("symbol node at %d: unsupported version %d", addr, v)
	}
	d.Skip(1)
	count := int(d.Uint16())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}

	body, err := nr.ReadBytes(count * (2*cfg.OffsetSize + 24))
	if err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	d = binary.NewDecoder(body, cfg)
	out := make([]Entry, 0, count)
	for range count {
		nameOff := d.Offset()
		e := Entry{ObjectAddress: d.Offset()}
		cache := d.Uint32()
		d.Skip(4)
		scratch := binary.NewDecoder(d.Bytes(16), cfg)
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
		}
		if e.Name, err = names.String(nameOff); err != nil {
			return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
		}
		if cache == cacheSoft {
			if e.SoftLinkValue, err = names.String(uint64(scratch.Uint32())); err != nil {
				return nil, fmt.Errorf("soft link %q: %w", e.Name, err)
			}
			e.ObjectAddress = 0
		}
		out = append(out, e)
	}
	return out, nil
}

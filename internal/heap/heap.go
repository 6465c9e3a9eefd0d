// Package heap reads the local heaps that hold old-style group link names
// and the global heap collections that hold variable-length data.
package heap

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// LocalHeap is the data segment of a local heap.
type LocalHeap struct {
	data []byte
}

// ReadLocalHeap reads the local heap whose header is at addr.
func ReadLocalHeap(r *binary.Reader, addr uint64) (*LocalHeap, error) {
	cfg := r.Config()
	raw, err := r.At(int64(addr)).ReadBytes(8 + 2*cfg.LengthSize + cfg.OffsetSize)
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}
	d := binary.NewDecoder(raw, cfg)
	d.Expect("HEAP")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("local heap at %d: unsupported version %d", addr, v)
	}
	d.Skip(3)
	size := d.Length()
	d.Length() // free list head
	dataAddr := d.Offset()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}

	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &LocalHeap{data: data}, nil
}

// String returns the NUL-terminated string at offset.
func (h *LocalHeap) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("local heap offset %d outside %d byte segment", offset, len(h.data))
	}
	d := binary.NewDecoder(h.data[offset:], binary.Config{})
	s := d.CString()
	return s, d.Err()
}

// GlobalHeap is one global heap collection.
type GlobalHeap struct {
	objects map[uint16][]byte
}

// ID refers to one object of a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// DecodeID reads a heap ID: a collection address then a 4-byte index.
func DecodeID(b []byte, cfg binary.Config) (ID, error) {
	d := binary.NewDecoder(b, cfg)
	id := ID{Collection: d.Offset(), Index: d.Uint32()}
	return id, d.Err()
}

// ReadGlobalHeap reads the collection at addr. Object 0 marks the free
// space that ends the collection.
func ReadGlobalHeap(r *binary.Reader, addr uint64) (*GlobalHeap, error) {
	cfg := r.Config()
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("global heap address %d is not allocated", addr)
	}
	head, err := r.At(int64(addr)).ReadBytes(8 + cfg.LengthSize)
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, cfg)
	d.Expect("GCOL")
	if v := d.Uint8(); d.Err() == nil && v != 1 {
		return nil, fmt.Errorf("global heap at %d: unsupported version %d", addr, v)
	}
	d.Skip(3)
	size := d.Length()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	if size < uint64(len(head)) {
		return nil, fmt.Errorf("global heap at %d: collection size %d too small", addr, size)
	}

	raw, err := r.At(int64(addr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	d = binary.NewDecoder(raw[len(head):], cfg)
	h := &GlobalHeap{objects: make(map[uint16][]byte)}
	for d.Remaining() >= 8+cfg.LengthSize {
		index := d.Uint16()
		if index == 0 {
			break
		}
		d.Skip(2 + 4) // reference count and reserved
		n := int(d.Length())
		obj := d.Bytes(n)
		d.Skip(min((8-n%8)%8, d.Remaining()))
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("global heap at %d object %d: %w", addr, index, err)
		}
		h.objects[index] = obj
	}
	return h, nil
}

// Object returns the bytes of object index.
func (h *GlobalHeap) Object(index uint32) ([]byte, error) {
	obj, ok := h.objects[uint16(index)]
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("global heap object %d not found", index)
	}
	return obj, nil
}

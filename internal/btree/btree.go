// Package btree walks the B-trees of a file. Version 1 trees index the
// links of old-style groups and the chunks of datasets written by older
// libraries; version 2 trees index the chunks of datasets with more than
// one unlimited dimension.
package btree

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/internal/binary"
)

// Node types.
const (
	groupNode = 0
	chunkNode = 1
)

// maxLevel bounds tree height so a corrupt child pointer cannot recurse
// without end.
const maxLevel = 64

// walk visits the leaf entries of the tree at addr in key order. Each
// leaf child comes with the key on its left.
func walk(r *binary.Reader, addr uint64, kind uint8, keySize int, visit func(key *binary.Decoder, child uint64) error) error {
	return walkLevel(r, addr, kind, keySize, -1, visit)
}

func walkLevel(r *binary.Reader, addr uint64, kind uint8, keySize, want int, visit func(*binary.Decoder, uint64) error) error {
	cfg := r.Config()
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8 + 2*cfg.OffsetSize)
	if err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, cfg)
	d.Expect("TREE")
	typ := d.Uint8()
	level := int(d.Uint8())
	used := int(d.Uint16())
	if err := d.Err(); err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	switch {
	case typ != kind:
		return fmt.Errorf("B-tree node at %d has type %d, want %d", addr, typ, kind)
	case level > maxLevel || (want >= 0 && level != want):
		return fmt.Errorf("B-tree node at %d has bad level %d", addr, level)
	}

	body, err := nr.ReadBytes(used*(keySize+cfg.OffsetSize) + keySize)
	if err != nil {
		return fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	d = binary.NewDecoder(body, cfg)
	for range used {
		key := binary.NewDecoder(d.Bytes(keySize), cfg)
		child := d.Offset()
		if err := d.Err(); err != nil {
			return fmt.Errorf("B-tree node at %d: %w", addr, err)
		}
		if level > 0 {
			err = walkLevel(r, child, kind, keySize, level-1, visit)
		} else {
			err = visit(key, child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/robert-malhotra/h5cat/internal/alloc"
	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/message"
	"github.com/robert-malhotra/h5cat/internal/object"
	"github.com/robert-malhotra/h5cat/internal/superblock"
)

// writer places new blocks at the end of a file being created.
type writer struct {
	w     *binary.Writer
	space *alloc.Allocator
}

func (w *writer) alloc(size int64) uint64 { return w.space.Alloc(uint64(size)) }

// write stores b in a fresh block and returns its address.
func (w *writer) write(b []byte) (uint64, error) {
	addr := w.alloc(int64(len(b)))
	return addr, w.w.At(int64(addr)).WriteBytes(b)
}

// Create creates an HDF5 file at path, truncating any existing file. It
// writes a version 3 superblock, version 2 object headers and eight-byte
// addresses. Group headers are written when the file is flushed or closed.
func Create(path string) (*File, error) {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	sb := superblock.New()
	cfg := sb.Config()
	f := &File{
		path:   path,
		f:      osf,
		reader: binary.NewReader(osf, cfg),
		sb:     sb,
		w:      &writer{w: binary.NewWriter(osf, cfg), space: alloc.New(uint64(sb.Size()))},
	}
	f.root = &Group{file: f, path: "/"}
	return f, nil
}

// Flush writes the group headers and the superblock. Blocks written by an
// earlier flush are left in place unused.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if f.w == nil {
		return nil
	}
	return f.flush()
}

func (f *File) flush() error {
	root, err := f.root.writeHeader()
	if err != nil {
		return err
	}
	f.sb.RootGroupAddress = root
	f.sb.EOFAddress = f.w.space.EOFAddr()
	if err := f.w.w.At(0).WriteBytes(f.sb.Encode()); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.f.Sync()
}

// writeHeader writes the headers of g's new subgroups, then g's own.
func (g *Group) writeHeader() (uint64, error) {
	for _, l := range g.links {
		if c := g.children[l.Name]; c != nil {
			addr, err := c.writeHeader()
			if err != nil {
				return 0, err
			}
			l.ObjectAddress = addr
		}
	}
	raw := object.Encode(g.file.sb.Config(), object.GroupMessages(g.links), object.MinGroupChunkSize)
	addr, err := g.file.w.write(raw)
	if err != nil {
		return 0, fmt.Errorf("writing group %s: %w", g.path, err)
	}
	g.addr = addr
	return addr, nil
}

// checkCreate reports whether a link called name can be added to g.
func (g *Group) checkCreate(name string) error {
	switch {
	case g.file.w == nil:
		return ErrReadOnly
	case g.file.closed:
		return ErrClosed
	case g.header != nil:
		return fmt.Errorf("%w: adding links to existing group %s", ErrUnsupported, g.path)
	case name == "" || name == "." || name == ".." || strings.Contains(name, "/"):
		return fmt.Errorf("%w: link name %q", ErrInvalidPath, name)
	}
	for _, l := range g.links {
		if l.Name == name {
			return fmt.Errorf("%w: %s already exists", ErrInvalidPath, path.Join(g.path, name))
		}
	}
	return nil
}

// CreateGroup adds an empty subgroup called name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	child := &Group{file: g.file, path: path.Join(g.path, name)}
	if g.children == nil {
		g.children = make(map[string]*Group)
	}
	g.children[name] = child
	g.links = append(g.links, message.NewHardLink(name, 0))
	return child, nil
}

// CreateSoftLink adds a link called name to target, which may be absolute
// or relative to g.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := g.checkCreate(name); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: empty soft link target", ErrInvalidPath)
	}
	g.links = append(g.links, message.NewSoftLink(name, target))
	return nil
}

// CreateExternalLink adds a link called name to the object at target in
// file, which is resolved relative to this file's directory.
func (g *Group) CreateExternalLink(name, file, target string) error {
	if err := g.checkCreate(name); err != nil {
		return err
	}
	if file == "" || !path.IsAbs(target) {
		return errors.Join(ErrInvalidPath, fmt.Errorf("external link needs a file and an absolute target, got %q and %q", file, target))
	}
	g.links = append(g.links, message.NewExternalLink(name, file, target))
	return nil
}

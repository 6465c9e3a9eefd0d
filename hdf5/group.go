package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/h5cat/internal/btree"
	"github.com/robert-malhotra/h5cat/internal/heap"
	"github.com/robert-malhotra/h5cat/internal/message"
	"github.com/robert-malhotra/h5cat/internal/object"
)

// Group is an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header // nil while the group is being written
	addr   uint64

	// A group being written keeps its links in memory until the file is
	// flushed. Links to new subgroups get their address then.
	links    []*message.Link
	children map[string]*Group
}

// Name returns the last component of the group's path.
func (g *Group) Name() string { return path.Base(g.path) }

// Path returns the absolute path of the group.
func (g *Group) Path() string { return g.path }

// link is a group member as stored, before it is followed. Exactly one
// of addr, soft and file is meaningful.
type link struct {
	name   string
	addr   uint64
	soft   string
	file   string
	target string
}

func fromMessage(m *message.Link) link {
	return link{name: m.Name, addr: m.ObjectAddress, soft: m.SoftLinkValue, file: m.ExternalFile, target: m.ExternalPath}
}

// readLinks lists the members of g in storage order. New-style groups
// keep Link messages in the header; old-style groups keep a symbol table,
// which older files cache in the superblock for the root group.
func (g *Group) readLinks() ([]link, error) {
	var out []link
	if g.header == nil {
		for _, m := range g.links {
			out = append(out, fromMessage(m))
		}
		return out, nil
	}

	if li := g.header.LinkInfo(); li != nil && li.Dense() {
		return nil, fmt.Errorf("%w: group %s keeps its links in dense storage", ErrUnsupported, g.path)
	}
	for _, m := range g.header.Links() {
		out = append(out, fromMessage(m))
	}
	if len(out) > 0 {
		return out, nil
	}

	st := g.header.SymbolTable()
	if st == nil && g.path == "/" && g.file.sb.RootGroupBTreeAddress != 0 {
		st = &message.SymbolTable{
			BTreeAddress:     g.file.sb.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.sb.RootGroupLocalHeapAddress,
		}
	}
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocalHeap(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	entries, err := btree.ReadGroup(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	for _, e := range entries {
		out = append(out, link{name: e.Name, addr: e.ObjectAddress, soft: e.SoftLinkValue})
	}
	return out, nil
}

// Members returns the link names of g in storage order. Links are listed
// whether or not their targets can be opened.
func (g *Group) Members() ([]string, error) {
	links, err := g.readLinks()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.name
	}
	return names, nil
}

// OpenGroup opens the group at p, relative to g unless absolute.
func (g *Group) OpenGroup(p string) (*Group, error) {
	n, err := g.lookup(p, 0)
	if err != nil {
		return nil, err
	}
	if n.group == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, p)
	}
	return n.group, nil
}

// OpenDataset opens the dataset at p, relative to g unless absolute.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	n, err := g.lookup(p, 0)
	if err != nil {
		return nil, err
	}
	if n.dataset == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, p)
	}
	return n.dataset, nil
}

// node is what a path resolves to: a group or a dataset.
type node struct {
	group   *Group
	dataset *Dataset
}

// lookup resolves p one component at a time. hops counts the soft and
// external links already followed.
func (g *Group) lookup(p string, hops int) (node, error) {
	if p == "" {
		return node{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cur := g
	if strings.HasPrefix(p, "/") {
		cur = g.file.root
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return node{group: cur}, nil
	}

	for i, name := range parts {
		n, err := cur.child(name, hops)
		if err != nil {
			return node{}, err
		}
		if i == len(parts)-1 {
			return n, nil
		}
		if n.group == nil {
			return node{}, fmt.Errorf("%w: %s", ErrNotGroup, path.Join(cur.path, name))
		}
		cur = n.group
	}
	panic("unreachable")
}

// child follows the link called name.
func (g *Group) child(name string, hops int) (node, error) {
	links, err := g.readLinks()
	if err != nil {
		return node{}, err
	}
	full := path.Join(g.path, name)
	for _, l := range links {
		if l.name != name {
			continue
		}
		switch {
		case l.soft != "" || l.file != "":
			if hops >= MaxLinkDepth {
				return node{}, fmt.Errorf("%w: %s", ErrLinkDepth, full)
			}
			if l.soft != "" {
				return g.lookup(l.soft, hops+1)
			}
			ext, err := g.file.externalFile(l.file)
			if err != nil {
				return node{}, fmt.Errorf("%s: %w", full, err)
			}
			return ext.root.lookup(l.target, hops+1)
		case g.children[name] != nil:
			return node{group: g.children[name]}, nil
		default:
			return g.file.nodeAt(l.addr, full)
		}
	}
	return node{}, fmt.Errorf("%w: %s", ErrNotFound, full)
}

// nodeAt reads the object header at addr. Headers with a layout message
// are datasets; everything else is treated as a group.
func (f *File) nodeAt(addr uint64, p string) (node, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return node{}, fmt.Errorf("%s: %w", p, err)
	}
	if h.IsDataset() {
		ds, err := newDataset(f, p, h)
		if err != nil {
			return node{}, fmt.Errorf("%s: %w", p, err)
		}
		return node{dataset: ds}, nil
	}
	return node{group: &Group{file: f, path: p, header: h, addr: addr}}, nil
}

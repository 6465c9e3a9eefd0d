// Package containertest provides an in-memory container.Opener that counts
// every handle it hands out, so tests can check that callers release them.
package containertest

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/robert-malhotra/h5cat/container"
)

// Dataset describes one fake dataset. Set the *Err fields to make the
// matching call fail.
type Dataset struct {
	Space    container.Dataspace
	SpaceErr error
	Class    container.TypeClass
	Values   []float64
	ReadErr  error
	Attrs    []container.Attribute
	AttrErr  error
}

// Vector returns a float dataset of rank 1 holding values.
func Vector(values ...float64) *Dataset {
	return &Dataset{
		Space:  container.Dataspace{Dims: []uint64{uint64(len(values))}},
		Class:  container.ClassFloat,
		Values: values,
	}
}

// File is an in-memory container keyed by slash-separated paths relative to
// the root group.
type File struct {
	datasets map[string]*Dataset
	groups   map[string]bool

	// LinksErr makes listing the root group fail.
	LinksErr error
}

func NewFile() *File {
	return &File{datasets: map[string]*Dataset{}, groups: map[string]bool{}}
}

// Add registers a dataset at name, creating parent groups as needed.
func (f *File) Add(name string, ds *Dataset) *File {
	name = strings.Trim(name, "/")
	f.datasets[name] = ds
	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		f.groups[dir] = true
	}
	return f
}

// AddGroup registers an empty group.
func (f *File) AddGroup(name string) *File {
	name = strings.Trim(name, "/")
	for dir := name; dir != "."; dir = path.Dir(dir) {
		f.groups[dir] = true
	}
	return f
}

// Opener serves Files by path and counts opens and closes.
type Opener struct {
	Files   map[string]*File
	OpenErr error

	Opens         int
	Closes        int
	DatasetOpens  int
	DatasetCloses int
}

func NewOpener() *Opener {
	return &Opener{Files: map[string]*File{}}
}

// With registers f under p and returns the opener.
func (o *Opener) With(p string, f *File) *Opener {
	o.Files[p] = f
	return o
}

// Balanced reports whether every handle handed out has been closed.
func (o *Opener) Balanced() bool {
	return o.Opens == o.Closes && o.DatasetOpens == o.DatasetCloses
}

func (o *Opener) String() string {
	return fmt.Sprintf("containers %d/%d, datasets %d/%d",
		o.Opens, o.Closes, o.DatasetOpens, o.DatasetCloses)
}

func (o *Opener) Open(p string) (container.Container, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	f, ok := o.Files[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, os.ErrNotExist)
	}
	o.Opens++
	return &conn{o: o, f: f}, nil
}

type conn struct {
	o      *Opener
	f      *File
	closed bool
}

func (c *conn) Links(group string) ([]string, error) {
	if c.closed {
		return nil, container.ErrClosed
	}
	group = strings.Trim(group, "/")
	if group == "" && c.f.LinksErr != nil {
		return nil, c.f.LinksErr
	}
	if group != "" && !c.f.groups[group] {
		return nil, fmt.Errorf("group %q: %w", group, container.ErrNotFound)
	}
	seen := map[string]bool{}
	add := func(name string) {
		dir := path.Dir(name)
		if dir == "." {
			dir = ""
		}
		if dir == group {
			seen[path.Base(name)] = true
		}
	}
	for name := range c.f.datasets {
		add(name)
	}
	for name := range c.f.groups {
		add(name)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *conn) OpenDataset(name string) (container.Dataset, error) {
	if c.closed {
		return nil, container.ErrClosed
	}
	name = strings.Trim(name, "/")
	ds, ok := c.f.datasets[name]
	if !ok {
		if c.f.groups[name] {
			return nil, fmt.Errorf("%q: %w", name, container.ErrNotDataset)
		}
		return nil, fmt.Errorf("%q: %w", name, container.ErrNotFound)
	}
	c.o.DatasetOpens++
	return &handle{o: c.o, name: path.Base(name), ds: ds}, nil
}

func (c *conn) Close() error {
	if c.closed {
		return container.ErrClosed
	}
	c.closed = true
	c.o.Closes++
	return nil
}

type handle struct {
	o      *Opener
	name   string
	ds     *Dataset
	closed bool
}

func (h *handle) Name() string { return h.name }

func (h *handle) Dataspace() (container.Dataspace, error) {
	if h.ds.SpaceErr != nil {
		return container.Dataspace{}, h.ds.SpaceErr
	}
	return h.ds.Space, nil
}

func (h *handle) TypeClass() container.TypeClass { return h.ds.Class }

func (h *handle) ReadFloat64() ([]float64, error) {
	if h.ds.ReadErr != nil {
		return nil, h.ds.ReadErr
	}
	return append([]float64(nil), h.ds.Values...), nil
}

func (h *handle) Attributes() ([]container.Attribute, error) {
	if h.ds.AttrErr != nil {
		return nil, h.ds.AttrErr
	}
	return h.ds.Attrs, nil
}

func (h *handle) Close() error {
	if h.closed {
		return container.ErrClosed
	}
	h.closed = true
	h.o.DatasetCloses++
	return nil
}

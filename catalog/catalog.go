// Package catalog lists the datasets stored in a container together with
// their type, rank and shape.
package catalog

import (
	"errors"
	"fmt"
	"path"

	"github.com/robert-malhotra/h5cat/container"
)

var (
	// ErrOpenContainer is returned when the container cannot be opened.
	ErrOpenContainer = errors.New("failed to open container")
	// ErrListContainer is returned when the root group cannot be listed.
	ErrListContainer = errors.New("failed to list container")
	// ErrCapacityExceeded is returned in strict mode when the container
	// holds more datasets than the catalog may keep.
	ErrCapacityExceeded = errors.New("catalog capacity exceeded")
)

// TypeTag is the short element-type name reported for a dataset.
type TypeTag string

const (
	TypeInt     TypeTag = "int"
	TypeFloat   TypeTag = "float"
	TypeString  TypeTag = "string"
	TypeUnknown TypeTag = "unknown"
)

func tagOf(c container.TypeClass) TypeTag {
	switch c {
	case container.ClassInteger:
		return TypeInt
	case container.ClassFloat:
		return TypeFloat
	case container.ClassString:
		return TypeString
	default:
		return TypeUnknown
	}
}

// Descriptor summarizes one dataset. Name is relative to the root group.
type Descriptor struct {
	Name         string
	Type         TypeTag
	Shape        []uint64
	Rank         int
	ElementCount uint64
}

// Catalog is the ordered result of Discover.
type Catalog struct {
	Datasets []Descriptor
	// Truncated is set when datasets were left out because the capacity was
	// reached.
	Truncated bool
}

// Count returns the number of descriptors.
func (c *Catalog) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Datasets)
}

// Names returns the dataset names in discovery order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the descriptor with the given name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Release drops every descriptor. It is safe on a nil or already released
// catalog.
func (c *Catalog) Release() {
	if c == nil {
		return
	}
	for i := range c.Datasets {
		c.Datasets[i] = Descriptor{}
	}
	c.Datasets = nil
	c.Truncated = false
}

// errFull stops the walk once the catalog is at capacity.
var errFull = errors.New("catalog full")

// Discover opens the container at p and describes its datasets in name
// order. When the container cannot be opened it returns an empty catalog
// together with an error wrapping ErrOpenContainer, and when its root group
// cannot be listed an error wrapping ErrListContainer. Links that are not
// datasets, or that cannot be introspected, are skipped, as are nested
// groups that cannot be listed.
func Discover(p string, opts ...Option) (*Catalog, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cat := &Catalog{Datasets: []Descriptor{}}
	c, err := o.opener.Open(p)
	if err != nil {
		o.logger.Debug("open failed", "path", p, "error", err)
		return cat, fmt.Errorf("%w %s: %w", ErrOpenContainer, p, err)
	}
	defer c.Close()

	w := &walker{c: c, o: o, cat: cat}
	switch err := w.walk("", 0); {
	case errors.Is(err, errFull):
		cat.Truncated = true
		o.logger.Debug("catalog truncated", "path", p, "count", cat.Count())
		if o.strict {
			return cat, fmt.Errorf("%w: more than %d datasets in %s", ErrCapacityExceeded, o.limits.MaxDatasets, p)
		}
	case err != nil:
		o.logger.Debug("listing failed", "path", p, "error", err)
		return cat, fmt.Errorf("%w %s: %w", ErrListContainer, p, err)
	}
	return cat, nil
}

type walker struct {
	c   container.Container
	o   *options
	cat *Catalog
}

// walk visits the links of group prefix ("" for the root).
func (w *walker) walk(prefix string, depth int) error {
	links, err := w.c.Links("/" + prefix)
	if err != nil {
		return err
	}
	for _, link := range links {
		name := path.Join(prefix, link)
		isDataset, err := w.describe(name)
		if err != nil {
			return err
		}
		if isDataset || !w.o.recursive {
			continue
		}
		if depth+1 >= w.o.limits.MaxDepth {
			w.o.logger.Debug("depth limit reached", "dataset", name, "depth", depth+1)
			continue
		}
		if err := w.walk(name, depth+1); err != nil {
			if errors.Is(err, errFull) {
				return err
			}
			w.o.logger.Debug("skipping link", "dataset", name, "error", err)
		}
	}
	return nil
}

// describe appends the descriptor for name if it is a dataset. It reports
// whether name opened as a dataset, even if introspection then failed.
func (w *walker) describe(name string) (bool, error) {
	ds, err := w.c.OpenDataset(name)
	if err != nil {
		w.o.logger.Debug("not a dataset", "dataset", name, "error", err)
		return false, nil
	}
	defer ds.Close()

	space, err := ds.Dataspace()
	if err != nil {
		w.o.logger.Debug("skipping dataset", "dataset", name, "error", err)
		return true, nil
	}
	if space.Null {
		w.o.logger.Debug("skipping dataset with null dataspace", "dataset", name)
		return true, nil
	}

	count, err := space.Elements()
	if err != nil {
		w.o.logger.Debug("skipping dataset", "dataset", name, "error", err)
		return true, nil
	}

	if len(w.cat.Datasets) >= w.o.limits.MaxDatasets {
		return true, errFull
	}

	w.cat.Datasets = append(w.cat.Datasets, Descriptor{
		Name:         name,
		Type:         tagOf(ds.TypeClass()),
		Shape:        append(make([]uint64, 0, space.Rank()), space.Dims...),
		Rank:         space.Rank(),
		ElementCount: count,
	})
	return true, nil
}

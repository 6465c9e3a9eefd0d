package hdf5

import (
	"fmt"
	"path"
	"slices"

	"github.com/robert-malhotra/h5cat/internal/dtype"
	"github.com/robert-malhotra/h5cat/internal/layout"
	"github.com/robert-malhotra/h5cat/internal/message"
	"github.com/robert-malhotra/h5cat/internal/object"
)

// Dataset is an HDF5 dataset.
type Dataset struct {
	file   *File
	path   string
	space  *message.Dataspace
	dt     *message.Datatype
	attrs  []*message.Attribute
	layout layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	if slices.Contains(h.Shared, message.TypeDatatype) {
		return nil, fmt.Errorf("%w: committed datatype", ErrUnsupported)
	}
	return makeDataset(f, p, layout.Dataset{
		Layout:  h.DataLayout(),
		Space:   h.Dataspace(),
		Type:    h.Datatype(),
		Filters: h.FilterPipeline(),
		Fill:    h.FillValue(),
	}, h.Attributes())
}

func makeDataset(f *File, p string, desc layout.Dataset, attrs []*message.Attribute) (*Dataset, error) {
	l, err := layout.New(desc, f.reader)
	if err != nil {
		return nil, err
	}
	return &Dataset{file: f, path: p, space: desc.Space, dt: desc.Type, attrs: attrs, layout: l}, nil
}

// Name returns the last component of the dataset's path.
func (d *Dataset) Name() string { return path.Base(d.path) }

// Path returns the absolute path the dataset was opened by.
func (d *Dataset) Path() string { return d.path }

// Shape returns the dimensions. Scalar and null datasets have none.
func (d *Dataset) Shape() []uint64 {
	if d.space.SpaceType != message.DataspaceSimple {
		return nil
	}
	return d.space.Dimensions
}

// Rank returns the number of dimensions, 0 for scalars.
func (d *Dataset) Rank() int { return len(d.Shape()) }

// NumElements returns the element count, saturating at math.MaxUint64.
func (d *Dataset) NumElements() uint64 { return d.space.NumElements() }

// IsScalar reports whether the dataset holds exactly one element and no
// dimensions.
func (d *Dataset) IsScalar() bool { return d.space.IsScalar() }

// IsNull reports whether the dataset has a null dataspace and holds no
// data at all.
func (d *Dataset) IsNull() bool { return d.space.IsNull() }

// DtypeClass returns the class of the stored element type.
func (d *Dataset) DtypeClass() message.DatatypeClass { return d.dt.Class }

// IsString reports whether elements are fixed or variable-length strings.
func (d *Dataset) IsString() bool { return d.dt.IsString() }

// Read decodes every element into dest, a pointer to a slice or to an
// any that receives the natural slice type.
func (d *Dataset) Read(dest any) error {
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.ConvertWithReader(d.dt, raw, d.space.NumElements(), dest, d.file.reader)
}

// ReadFloat64 reads integer or floating-point elements as float64.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	if !dtype.IsNumeric(d.dt) {
		return nil, fmt.Errorf("%w: %s has datatype class %d", ErrUnsupported, d.path, d.dt.Class)
	}
	var out []float64
	err := d.Read(&out)
	return out, err
}

// ReadString reads string elements.
func (d *Dataset) ReadString() ([]string, error) {
	if !d.dt.IsString() {
		return nil, fmt.Errorf("%w: %s is not a string dataset", ErrUnsupported, d.path)
	}
	var out []string
	err := d.Read(&out)
	return out, err
}

// Attrs returns the attribute names in header order.
func (d *Dataset) Attrs() []string {
	names := make([]string, len(d.attrs))
	for i, a := range d.attrs {
		names[i] = a.Name
	}
	return names
}

// Attributes returns every attribute in header order.
func (d *Dataset) Attributes() []*Attribute {
	out := make([]*Attribute, len(d.attrs))
	for i, a := range d.attrs {
		out[i] = &Attribute{msg: a, reader: d.file.reader}
	}
	return out
}

// Attr returns the attribute called name, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	for _, a := range d.attrs {
		if a.Name == name {
			return &Attribute{msg: a, reader: d.file.reader}
		}
	}
	return nil
}

package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/h5cat/internal/dtype"
	"github.com/robert-malhotra/h5cat/internal/layout"
	"github.com/robert-malhotra/h5cat/internal/message"
	"github.com/robert-malhotra/h5cat/internal/object"
)

// CreateDataset creates a new dataset with the given name from data.
// The datatype is inferred from the Go element type. A non-slice value
// creates a scalar dataset; nested slices give one dimension per level, and
// WithShape reshapes flat data.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := newDatasetOptions(opts)

	enc, err := encodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}
	dims := enc.dims
	if options.shape != nil {
		if product(options.shape) != product(dims) {
			return nil, fmt.Errorf("shape %v does not match %d elements", options.shape, product(dims))
		}
		dims = options.shape
	}

	dataspace := message.NewScalarDataspace()
	if dims != nil {
		dataspace = message.NewDataspace(dims, nil)
	}

	var dataLayout *message.DataLayout
	switch {
	case options.chunks == nil:
		addr, err := g.file.w.write(enc.raw)
		if err != nil {
			return nil, fmt.Errorf("writing data: %w", err)
		}
		dataLayout = message.NewContiguousLayout(addr, uint64(len(enc.raw)))
	case dims == nil:
		return nil, fmt.Errorf("scalar dataset %q cannot be chunked", name)
	default:
		chunkDims := make([]uint32, len(options.chunks))
		for i, c := range options.chunks {
			if c == 0 || c > 1<<32-1 {
				return nil, fmt.Errorf("chunk dimension %d out of range", c)
			}
			chunkDims[i] = uint32(c)
		}
		cw := layout.NewChunkWriter(g.file.w.w, g.file.w.alloc)
		if dataLayout, err = cw.Write(enc.raw, dims, chunkDims, enc.dt.Size); err != nil {
			return nil, fmt.Errorf("writing chunks: %w", err)
		}
	}

	return g.linkDataset(name, dataspace, enc.dt, dataLayout, options.attributes)
}

// CreateEmptyDataset creates a float64 dataset with a null dataspace. It
// has a name, a type and attributes but no elements.
func (g *Group) CreateEmptyDataset(name string, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := newDatasetOptions(opts)
	dt := message.NewFloatDatatype(8, message.OrderLE)
	return g.linkDataset(name, message.NewNullDataspace(), dt, message.NewCompactLayout(nil), options.attributes)
}

// linkDataset writes the dataset header and links it into g.
func (g *Group) linkDataset(name string, space *message.Dataspace, dt *message.Datatype,
	dl *message.DataLayout, defs []attrDef) (*Dataset, error) {
	attrs := make([]*message.Attribute, 0, len(defs))
	for _, def := range defs {
		enc, err := encodeValue(def.value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", def.name, err)
		}
		attrSpace := message.NewScalarDataspace()
		if enc.dims != nil {
			attrSpace = message.NewDataspace(enc.dims, nil)
		}
		attrs = append(attrs, message.NewAttribute(def.name, enc.dt, attrSpace, enc.raw))
	}

	raw := object.Encode(g.file.sb.Config(), object.DatasetMessages(space, dt, dl, attrs), 0)
	addr, err := g.file.w.write(raw)
	if err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}
	g.links = append(g.links, message.NewHardLink(name, addr))

	return makeDataset(g.file, path.Join(g.path, name), layout.Dataset{Layout: dl, Space: space, Type: dt}, attrs)
}

// encoded is a Go value turned into an HDF5 type, shape and byte buffer.
// dims is nil for a scalar.
type encoded struct {
	dims []uint64
	dt   *message.Datatype
	raw  []byte
}

// encodeValue encodes a number, a string, or (nested) slices of either.
// Strings become null-terminated fixed-length strings sized to the longest.
func encodeValue(v any) (*encoded, error) {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return nil, fmt.Errorf("nil value")
	}
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	var dims []uint64
	elem := val.Type()
	for cur := val; cur.Kind() == reflect.Slice || cur.Kind() == reflect.Array; {
		dims = append(dims, uint64(cur.Len()))
		elem = cur.Type().Elem()
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}
	flat := flatten(val, elem)

	if elem.Kind() == reflect.String {
		strs := make([]string, flat.Len())
		for i := range strs {
			strs[i] = flat.Index(i).String()
		}
		if len(strs) == 0 {
			return nil, fmt.Errorf("%w: empty string array", ErrUnsupported)
		}
		dt, raw := dtype.FixedStrings(strs)
		return &encoded{dims: dims, dt: dt, raw: raw}, nil
	}

	dt, err := dtype.FromGoType(elem)
	if err != nil {
		return nil, err
	}
	raw, err := dtype.Encode(dt, flat.Interface())
	if err != nil {
		return nil, err
	}
	return &encoded{dims: dims, dt: dt, raw: raw}, nil
}

// flatten collapses nested slices into one slice of elem in row-major
// order. A scalar comes back as a one-element slice.
func flatten(val reflect.Value, elem reflect.Type) reflect.Value {
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		out := reflect.MakeSlice(reflect.SliceOf(elem), 1, 1)
		out.Index(0).Set(val)
		return out
	}
	if val.Type().Elem() == elem {
		if val.Kind() == reflect.Array {
			out := reflect.MakeSlice(reflect.SliceOf(elem), val.Len(), val.Len())
			reflect.Copy(out, val)
			return out
		}
		return val
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		out = reflect.AppendSlice(out, flatten(val.Index(i), elem))
	}
	return out
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

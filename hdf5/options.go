package hdf5

// DatasetOption changes how CreateDataset stores a dataset.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	chunks     []uint64
	shape      []uint64
	attributes []attrDef
}

func newDatasetOptions(opts []DatasetOption) *datasetOptions {
	o := new(datasetOptions)
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// WithChunks stores the dataset in chunks of the given shape, one entry
// per dimension. Partial chunks at the edges are padded.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.chunks = dims }
}

// WithShape gives flat data its dimensions. The product of dims must be
// the number of elements passed to CreateDataset.
func WithShape(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.shape = dims }
}

// WithAttribute attaches a numeric or string attribute, scalar or slice.
// It may be repeated; attributes keep the order they are given in.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name, value})
	}
}

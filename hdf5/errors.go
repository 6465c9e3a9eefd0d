// Package hdf5 reads and writes HDF5 files without cgo.
package hdf5

import "errors"

var (
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
	ErrReadOnly    = errors.New("file is not writable")
)

// MaxLinkDepth bounds the soft and external links followed while resolving
// one path, which also stops link cycles.
const MaxLinkDepth = 100

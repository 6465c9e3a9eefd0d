package hdf5

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/h5cat/internal/binary"
	"github.com/robert-malhotra/h5cat/internal/object"
	"github.com/robert-malhotra/h5cat/internal/superblock"
)

// File is an open HDF5 file.
type File struct {
	path   string
	f      *os.File
	reader *binary.Reader
	sb     *superblock.Superblock
	root   *Group
	closed bool

	// external holds files opened through external links, by name.
	external map[string]*File

	w *writer // nil unless created with Create
}

// Open opens the HDF5 file at path for reading.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := open(path, osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

func open(path string, osf *os.File) (*File, error) {
	sb, err := superblock.Read(osf)
	if errors.Is(err, superblock.ErrNotHDF5) {
		return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Addresses count from the base address, which moves past a user block.
	var src io.ReaderAt = osf
	if sb.BaseAddress != 0 {
		src = io.NewSectionReader(osf, int64(sb.BaseAddress), math.MaxInt64-int64(sb.BaseAddress))
	}

	f := &File{path: path, f: osf, reader: binary.NewReader(src, sb.Config()), sb: sb}
	header, err := object.Read(f.reader, sb.RootGroupAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: root group: %w", path, err)
	}
	f.root = &Group{file: f, path: "/", header: header, addr: sb.RootGroupAddress}
	return f, nil
}

// Close releases the file and every file reached through external links.
// A file being written is finalized first.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.w != nil {
		err = f.flush()
	}
	for _, ext := range f.external {
		ext.Close()
	}
	f.external = nil
	return errors.Join(err, f.f.Close())
}

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Path returns the name the file was opened or created with.
func (f *File) Path() string { return f.path }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.sb.Version) }

// OpenGroup opens the group at an absolute or root-relative path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens the dataset at an absolute or root-relative path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// externalFile opens name relative to the directory of f, once.
func (f *File) externalFile(name string) (*File, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(f.path), name)
	}
	if ext, ok := f.external[name]; ok {
		return ext, nil
	}
	ext, err := Open(name)
	if err != nil {
		return nil, fmt.Errorf("external file: %w", err)
	}
	if f.external == nil {
		f.external = make(map[string]*File)
	}
	f.external[name] = ext
	return ext, nil
}

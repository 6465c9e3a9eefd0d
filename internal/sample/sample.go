// Package sample writes the small HDF5 container used by h5gen and the
// package tests.
package sample

import (
	"fmt"

	"github.com/robert-malhotra/h5cat/hdf5"
)

// Names of the datasets Write creates, in name order as catalogued.
const (
	Alias  = "alias"
	Counts = "counts"
	Empty  = "empty"
	Entry  = "entry"
	Labels = "labels"
	Matrix = "matrix"
	MyData = "mydata"
	Scalar = "scalar"
	Signal = "entry/signal"
)

// MyDataLen is the number of elements in MyData.
const MyDataLen = 100

// Write creates a container at path holding:
//
//	mydata        float64 0..99 with Creator and Version attributes
//	matrix        float64 [2,3] holding 1..6 with a units attribute
//	scalar        float64 scalar 42.5
//	counts        int32 [6] in chunks of 2
//	labels        fixed-length strings
//	empty         float64 with a null dataspace
//	entry/signal  float64 [4]
//	alias         soft link to /entry/signal
//
// Creator and Version sit on mydata rather than on the root group so that
// extraction has dataset attributes to report; only dataset attributes
// are ever read back.
func Write(path string) error {
	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}
	if err := populate(f.Root()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func populate(root *hdf5.Group) error {
	mydata := make([]float64, MyDataLen)
	for i := range mydata {
		mydata[i] = float64(i)
	}

	datasets := []struct {
		name string
		data any
		opts []hdf5.DatasetOption
	}{
		{MyData, mydata, []hdf5.DatasetOption{
			hdf5.WithAttribute("Creator", "Test Suite"),
			hdf5.WithAttribute("Version", "1.0"),
		}},
		{Matrix, []float64{1, 2, 3, 4, 5, 6}, []hdf5.DatasetOption{
			hdf5.WithShape(2, 3),
			hdf5.WithAttribute("units", "counts"),
		}},
		{Scalar, 42.5, nil},
		{Counts, []int32{3, 1, 4, 1, 5, 9}, []hdf5.DatasetOption{hdf5.WithChunks(2)}},
		{Labels, []string{"x", "y", "z"}, nil},
	}
	for _, d := range datasets {
		if _, err := root.CreateDataset(d.name, d.data, d.opts...); err != nil {
			return fmt.Errorf("creating %s: %w", d.name, err)
		}
	}

	if _, err := root.CreateEmptyDataset(Empty); err != nil {
		return fmt.Errorf("creating %s: %w", Empty, err)
	}

	entry, err := root.CreateGroup(Entry)
	if err != nil {
		return fmt.Errorf("creating %s: %w", Entry, err)
	}
	if _, err := entry.CreateDataset("signal", []float64{0.25, 0.5, 0.75, 1}); err != nil {
		return fmt.Errorf("creating %s: %w", Signal, err)
	}
	return root.CreateSoftLink(Alias, "/"+Signal)
}

package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/container"
	"github.com/robert-malhotra/h5cat/internal/config"
	"github.com/robert-malhotra/h5cat/internal/containertest"
	"github.com/robert-malhotra/h5cat/internal/sample"
)

func writeSample(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sample.h5")
	require.NoError(t, sample.Write(p))
	return p
}

func TestExtractMatrix(t *testing.T) {
	res := Extract(writeSample(t), sample.Matrix)
	defer res.Release()
	require.NoError(t, res.Err())

	assert.Empty(t, res.Error)
	assert.Equal(t, 2, res.Rank)
	assert.Equal(t, []uint64{2, 3}, res.Shape)
	assert.Equal(t, uint64(6), res.TotalSize)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, res.Data)
	assert.Equal(t, []Pair{{Key: "units", Value: "counts"}}, res.Metadata)
}

func TestExtractSample(t *testing.T) {
	p := writeSample(t)

	tests := []struct {
		name     string
		shape    []uint64
		head     []float64
		metadata []Pair
	}{
		{
			name:  sample.MyData,
			shape: []uint64{sample.MyDataLen},
			head:  []float64{0, 1, 2},
			metadata: []Pair{
				{Key: "Creator", Value: "Test Suite"},
				{Key: "Version", Value: "1.0"},
			},
		},
		{
			name:     sample.Scalar,
			shape:    []uint64{},
			head:     []float64{42.5},
			metadata: []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}},
		},
		{
			name:     sample.Counts,
			shape:    []uint64{6},
			head:     []float64{3, 1, 4, 1, 5, 9},
			metadata: []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}},
		},
		{
			name:     sample.Signal,
			shape:    []uint64{4},
			head:     []float64{0.25, 0.5},
			metadata: []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}},
		},
		{
			name:     sample.Alias,
			shape:    []uint64{4},
			head:     []float64{0.25, 0.5},
			metadata: []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(p, tt.name)
			require.NoError(t, res.Err())
			assert.Equal(t, tt.shape, res.Shape)
			assert.Equal(t, len(tt.shape), res.Rank)
			assert.Equal(t, uint64(len(res.Data)), res.TotalSize)
			assert.Equal(t, tt.head, res.Preview(len(tt.head)))
			assert.Equal(t, tt.metadata, res.Metadata)
		})
	}
}

func TestExtractScalarConvention(t *testing.T) {
	res := Extract(writeSample(t), sample.Scalar)
	require.NoError(t, res.Err())
	assert.Equal(t, 0, res.Rank)
	assert.NotNil(t, res.Shape)
	assert.Empty(t, res.Shape)
	assert.Equal(t, uint64(1), res.TotalSize)
	assert.Equal(t, []float64{42.5}, res.Data)
}

func TestExtractFailures(t *testing.T) {
	p := writeSample(t)

	t.Run("missing file", func(t *testing.T) {
		res := Extract(filepath.Join(t.TempDir(), "absent.h5"), sample.MyData)
		assert.Equal(t, "Failed to open file", res.Error)
		assert.ErrorIs(t, res.Err(), ErrOpenFile)
		assert.Nil(t, res.Data)
		assert.Nil(t, res.Shape)
	})

	t.Run("not hdf5", func(t *testing.T) {
		junk := filepath.Join(t.TempDir(), "junk.h5")
		require.NoError(t, os.WriteFile(junk, []byte("plain text"), 0o644))
		res := Extract(junk, sample.MyData)
		assert.Equal(t, "Failed to open file", res.Error)
	})

	t.Run("missing dataset", func(t *testing.T) {
		res := Extract(p, "nonexistent")
		assert.Equal(t, "Failed to open dataset", res.Error)
		assert.ErrorIs(t, res.Err(), ErrOpenDataset)
		assert.ErrorIs(t, res.Err(), container.ErrNotFound)
		assert.Nil(t, res.Data)
	})

	t.Run("group", func(t *testing.T) {
		res := Extract(p, sample.Entry)
		assert.Equal(t, "Failed to open dataset", res.Error)
		assert.ErrorIs(t, res.Err(), container.ErrNotDataset)
	})

	t.Run("null dataspace", func(t *testing.T) {
		res := Extract(p, sample.Empty)
		assert.Equal(t, "Failed to query dataspace", res.Error)
		assert.Nil(t, res.Shape)
	})

	t.Run("strings", func(t *testing.T) {
		res := Extract(p, sample.Labels)
		assert.Equal(t, "Failed to read dataset", res.Error)
		assert.Equal(t, FailureRead, res.Kind)
		assert.Equal(t, []uint64{3}, res.Shape)
		assert.Equal(t, uint64(3), res.TotalSize)
		assert.Nil(t, res.Data)
		res.Release()
		res.Release()
	})
}

func TestExtractFake(t *testing.T) {
	errBoom := errors.New("boom")
	f := containertest.NewFile().
		Add("deep", &containertest.Dataset{Space: container.Dataspace{Dims: make([]uint64, 17)}}).
		Add("badspace", &containertest.Dataset{SpaceErr: errBoom}).
		Add("null", &containertest.Dataset{Space: container.Dataspace{Null: true}}).
		Add("short", &containertest.Dataset{Space: container.Dataspace{Dims: []uint64{3}}, Values: []float64{1}}).
		Add("unreadable", &containertest.Dataset{Space: container.Dataspace{Dims: []uint64{2}}, ReadErr: errBoom}).
		Add("huge", &containertest.Dataset{Space: container.Dataspace{Dims: []uint64{1 << 61, 16}}}).
		Add("noattrs", &containertest.Dataset{
			Space:   container.Dataspace{Dims: []uint64{1}},
			Values:  []float64{3},
			AttrErr: errBoom,
		}).
		Add("attrs", &containertest.Dataset{
			Space:  container.Dataspace{Dims: []uint64{1}},
			Values: []float64{7},
			Attrs: []container.Attribute{
				{Name: "gain", Value: 2.5},
				{Name: "bad", Err: errBoom},
				{Name: "gain", Value: []int64{1, 2}},
			},
		})
	opener := containertest.NewOpener().With("f", f)

	tests := []struct {
		name string
		kind FailureKind
		msg  string
	}{
		{"deep", FailureRankExceeded, "Dataset rank exceeds maximum"},
		{"badspace", FailureDataspace, "Failed to query dataspace"},
		{"null", FailureDataspace, "Failed to query dataspace"},
		{"short", FailureRead, "Failed to read dataset"},
		{"unreadable", FailureRead, "Failed to read dataset"},
		{"huge", FailureDataspace, "Failed to query dataspace"},
		{"noattrs", FailureNone, ""},
		{"attrs", FailureNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract("f", tt.name, WithOpener(opener))
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.msg, res.Error)
			assert.True(t, opener.Balanced(), opener.String())
		})
	}

	res := Extract("f", "attrs", WithOpener(opener))
	assert.Equal(t, []Pair{
		{Key: "gain", Value: "2.5"},
		{Key: "bad", Value: ""},
		{Key: "gain", Value: "[1 2]"},
	}, res.Metadata)

	res = Extract("f", "noattrs", WithOpener(opener))
	assert.Equal(t, []float64{3}, res.Data)
	assert.Equal(t, []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}}, res.Metadata)

	res = Extract("f", "huge", WithOpener(opener))
	assert.ErrorIs(t, res.Err(), container.ErrOverflow)
	assert.Nil(t, res.Shape)

	res = Extract("f", "unreadable", WithOpener(opener))
	assert.ErrorIs(t, res.Err(), errBoom)
	assert.Equal(t, []uint64{2}, res.Shape)

	res = Extract("f", "deep", WithOpener(opener), WithLimits(config.Limits{MaxRank: 32}))
	assert.NotEqual(t, FailureRankExceeded, res.Kind)
}

func TestExtractOpenFailure(t *testing.T) {
	errDenied := errors.New("permission denied")
	opener := containertest.NewOpener()
	opener.OpenErr = errDenied

	res := Extract("f", "x", WithOpener(opener))
	assert.Equal(t, FailureOpenFile, res.Kind)
	assert.ErrorIs(t, res.Err(), errDenied)
	assert.True(t, opener.Balanced(), opener.String())
}

func TestExtractSingleMatrix(t *testing.T) {
	f := containertest.NewFile().Add("mydata", &containertest.Dataset{
		Space:  container.Dataspace{Dims: []uint64{2, 3}},
		Class:  container.ClassFloat,
		Values: []float64{1, 2, 3, 4, 5, 6},
	})
	opener := containertest.NewOpener().With("f", f)

	res := Extract("f", "mydata", WithOpener(opener))
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Rank)
	assert.Equal(t, []uint64{2, 3}, res.Shape)
	assert.Equal(t, uint64(6), res.TotalSize)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, res.Data)
	assert.Equal(t, []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}}, res.Metadata)
	assert.True(t, opener.Balanced(), opener.String())
}

func TestExtractIdempotent(t *testing.T) {
	p := writeSample(t)
	first := Extract(p, sample.MyData)
	second := Extract(p, sample.MyData)
	assert.Equal(t, first, second)
}

func TestReleaseSafety(t *testing.T) {
	var nilResult *Result
	assert.NotPanics(t, nilResult.Release)

	res := Extract(filepath.Join(t.TempDir(), "absent.h5"), "x")
	res.Release()
	res.Release()
	assert.Equal(t, Result{}, *res)
	assert.NoError(t, res.Err())
}

func TestPreview(t *testing.T) {
	res := &Result{Data: []float64{1, 2, 3}}
	assert.Equal(t, []float64{1, 2}, res.Preview(2))
	assert.Equal(t, []float64{1, 2, 3}, res.Preview(0))
	assert.Equal(t, []float64{1, 2, 3}, res.Preview(10))
}

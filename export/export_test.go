package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5cat/catalog"
	"github.com/robert-malhotra/h5cat/extract"
	"github.com/robert-malhotra/h5cat/internal/sample"
)

func metaValue(t *testing.T, md arrow.Metadata, key string) string {
	t.Helper()
	i := md.FindKey(key)
	require.GreaterOrEqual(t, i, 0, "missing metadata key %q", key)
	return md.Values()[i]
}

func TestRecord(t *testing.T) {
	res := &extract.Result{
		Rank:      2,
		Shape:     []uint64{2, 3},
		TotalSize: 6,
		Data:      []float64{1, 2, 3, 4, 5, 6},
		Metadata:  []extract.Pair{{Key: "units", Value: "counts"}},
	}

	rec, err := Record("matrix", res)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(6), rec.NumRows())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, rec.Column(0).(*array.Float64).Float64Values())

	md := rec.Schema().Metadata()
	assert.Equal(t, "matrix", metaValue(t, md, KeyDataset))
	assert.Equal(t, "2", metaValue(t, md, KeyRank))
	assert.Equal(t, "2,3", metaValue(t, md, KeyShape))
	assert.Equal(t, "counts", metaValue(t, md, AttrPrefix+"units"))
}

func TestRecordRejectsFailure(t *testing.T) {
	res := extract.Extract(filepath.Join(t.TempDir(), "absent.h5"), "x")
	_, err := Record("x", res)
	assert.ErrorIs(t, err, extract.ErrOpenFile)
}

func TestParquetRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sample.h5")
	require.NoError(t, sample.Write(p))

	res := extract.Extract(p, sample.MyData)
	require.NoError(t, res.Err())
	rec, err := Record(sample.MyData, res)
	require.NoError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, rec))

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(sample.MyDataLen), tbl.NumRows())
	var got []float64
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		got = append(got, chunk.(*array.Float64).Float64Values()...)
	}
	assert.Equal(t, res.Data, got)

	schema, err := ReadParquetSchema(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	md := schema.Metadata()
	assert.Equal(t, sample.MyData, metaValue(t, md, KeyDataset))
	assert.Equal(t, "1", metaValue(t, md, KeyRank))
	assert.Equal(t, strconv.Itoa(sample.MyDataLen), metaValue(t, md, KeyShape))
	assert.Equal(t, "Test Suite", metaValue(t, md, AttrPrefix+"Creator"))
}

func TestReadParquetSchemaWithoutArrowSchema(t *testing.T) {
	res := &extract.Result{Rank: 1, Shape: []uint64{2}, TotalSize: 2, Data: []float64{1, 2},
		Metadata: []extract.Pair{{Key: "units", Value: "V"}}}
	rec, err := Record("volts", res)
	require.NoError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	w, err := pqarrow.NewFileWriter(rec.Schema(), &buf, nil, pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	schema, err := ReadParquetSchema(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "volts", metaValue(t, schema.Metadata(), KeyDataset))
	assert.Equal(t, "V", metaValue(t, schema.Metadata(), AttrPrefix+"units"))
}

func TestCatalogRecord(t *testing.T) {
	cat := &catalog.Catalog{Datasets: []catalog.Descriptor{
		{Name: "a", Type: catalog.TypeFloat, Shape: []uint64{4}, Rank: 1, ElementCount: 4},
		{Name: "s", Type: catalog.TypeInt, Shape: []uint64{}, Rank: 0, ElementCount: 1},
	}}

	rec := CatalogRecord(cat)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	names := rec.Column(0).(*array.String)
	assert.Equal(t, "a", names.Value(0))
	assert.Equal(t, "int", rec.Column(1).(*array.String).Value(1))
	assert.Equal(t, "", rec.Column(3).(*array.String).Value(1))
	assert.Equal(t, []uint64{4, 1}, rec.Column(4).(*array.Uint64).Uint64Values())

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, rec))
	assert.NotZero(t, buf.Len())

	empty := CatalogRecord(nil)
	defer empty.Release()
	assert.Zero(t, empty.NumRows())
}

func TestFormatShape(t *testing.T) {
	assert.Equal(t, "", FormatShape(nil))
	assert.Equal(t, "100", FormatShape([]uint64{100}))
	assert.Equal(t, "2,3,4", FormatShape([]uint64{2, 3, 4}))
}

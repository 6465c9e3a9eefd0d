// Package export converts catalogs and extracted datasets to Arrow records
// and writes them as Parquet.
package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/robert-malhotra/h5cat/catalog"
	"github.com/robert-malhotra/h5cat/extract"
)

// Schema metadata keys set by Record. Each metadata pair of the result is
// stored under AttrPrefix + key.
const (
	KeyDataset = "dataset"
	KeyRank    = "rank"
	KeyShape   = "shape"
	AttrPrefix = "attr."
)

// FormatShape renders a shape as comma-separated extents, "" for a scalar.
func FormatShape(shape []uint64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return strings.Join(parts, ",")
}

// Record builds a single-column record named "value" holding res.Data. The
// dataset name, rank, shape and metadata pairs travel in the schema
// metadata. The caller must Release the record.
func Record(name string, res *extract.Result) (arrow.Record, error) {
	if res == nil {
		return nil, fmt.Errorf("exporting %s: no result", name)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("exporting %s: %w", name, err)
	}

	keys := []string{KeyDataset, KeyRank, KeyShape}
	values := []string{name, strconv.Itoa(res.Rank), FormatShape(res.Shape)}
	for _, p := range res.Metadata {
		keys = append(keys, AttrPrefix+p.Key)
		values = append(values, p.Value)
	}
	md := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	}, &md)

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(res.Data, nil)
	col := b.NewArray()
	defer col.Release()

	return array.NewRecord(schema, []arrow.Array{col}, int64(col.Len())), nil
}

var catalogSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.BinaryTypes.String},
	{Name: "rank", Type: arrow.PrimitiveTypes.Int64},
	{Name: "shape", Type: arrow.BinaryTypes.String},
	{Name: "elements", Type: arrow.PrimitiveTypes.Uint64},
}, nil)

// CatalogRecord builds one row per descriptor. The caller must Release the
// record.
func CatalogRecord(cat *catalog.Catalog) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, catalogSchema)
	defer b.Release()

	if cat != nil {
		for _, d := range cat.Datasets {
			b.Field(0).(*array.StringBuilder).Append(d.Name)
			b.Field(1).(*array.StringBuilder).Append(string(d.Type))
			b.Field(2).(*array.Int64Builder).Append(int64(d.Rank))
			b.Field(3).(*array.StringBuilder).Append(FormatShape(d.Shape))
			b.Field(4).(*array.Uint64Builder).Append(d.ElementCount)
		}
	}
	return b.NewRecord()
}

// WriteParquet writes rec to w as a snappy-compressed Parquet file with the
// Arrow schema embedded.
func WriteParquet(w io.Writer, rec arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("writing parquet: %w", err)
	}
	return writer.Close()
}

// ReadParquetSchema returns the Arrow schema stored in a Parquet file,
// including its schema metadata. pqarrow.ReadTable drops that metadata, so
// use this to recover the dataset and attribute keys.
func ReadParquetSchema(r parquet.ReaderAtSeeker) (*arrow.Schema, error) {
	rdr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening parquet: %w", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("reading parquet schema: %w", err)
	}
	schema, err := fr.Schema()
	if err != nil || schema.Metadata().Len() > 0 {
		return schema, err
	}

	// No embedded Arrow schema: fall back to the file key/value pairs.
	var keys, values []string
	for _, kv := range rdr.MetaData().KeyValueMetadata() {
		if kv.Key == arrowSchemaKey {
			continue
		}
		keys = append(keys, kv.Key)
		values = append(values, kv.GetValue())
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(schema.Fields(), &md), nil
}

const arrowSchemaKey = "ARROW:schema"

// WriteParquetFile creates path and writes rec to it with WriteParquet.
// Closing the Parquet writer also closes the file.
func WriteParquetFile(path string, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	if err := WriteParquet(f, rec); err != nil {
		f.Close()
		return err
	}
	return nil
}

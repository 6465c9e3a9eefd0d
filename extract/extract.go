// Package extract reads one dataset's values as float64 together with its
// shape and attributes.
package extract

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/robert-malhotra/h5cat/container"
)

// FailureKind classifies why an extraction failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureOpenFile
	FailureOpenDataset
	FailureDataspace
	FailureRankExceeded
	FailureRead
)

var (
	ErrOpenFile     = errors.New("Failed to open file")
	ErrOpenDataset  = errors.New("Failed to open dataset")
	ErrDataspace    = errors.New("Failed to query dataspace")
	ErrRankExceeded = errors.New("Dataset rank exceeds maximum")
	ErrRead         = errors.New("Failed to read dataset")
)

func (k FailureKind) sentinel() error {
	switch k {
	case FailureOpenFile:
		return ErrOpenFile
	case FailureOpenDataset:
		return ErrOpenDataset
	case FailureDataspace:
		return ErrDataspace
	case FailureRankExceeded:
		return ErrRankExceeded
	case FailureRead:
		return ErrRead
	default:
		return nil
	}
}

func (k FailureKind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return ""
}

// Placeholder metadata emitted for a dataset without attributes.
const (
	PlaceholderKey   = "dummy_key"
	PlaceholderValue = "dummy_value"
)

// Pair is one metadata entry. Keys are not necessarily unique.
type Pair struct {
	Key   string
	Value string
}

// Result holds an extracted dataset. On failure Error holds one of the
// fixed messages and Kind and Cause say why.
type Result struct {
	Rank      int
	Shape     []uint64
	TotalSize uint64
	Data      []float64
	Metadata  []Pair
	Error     string
	Kind      FailureKind
	Cause     error
}

// Err returns nil on success, otherwise an error matching both the kind's
// sentinel and the underlying cause.
func (r *Result) Err() error {
	if r == nil || r.Kind == FailureNone {
		return nil
	}
	if r.Cause == nil {
		return r.Kind.sentinel()
	}
	return fmt.Errorf("%w: %w", r.Kind.sentinel(), r.Cause)
}

// Release drops everything the result holds. It is safe on a nil result,
// a failed result, and a result that was already released.
func (r *Result) Release() {
	if r == nil {
		return
	}
	*r = Result{}
}

// Preview returns at most n leading values, or all of them when n <= 0.
func (r *Result) Preview(n int) []float64 {
	if r == nil {
		return nil
	}
	if n <= 0 || n >= len(r.Data) {
		return r.Data
	}
	return r.Data[:n]
}

func (r *Result) fail(kind FailureKind, cause error) *Result {
	r.Kind = kind
	r.Error = kind.String()
	r.Cause = cause
	return r
}

// Extract opens the container at path and reads the dataset name. It never
// returns nil; check Error or Err for failure. Every handle it opens is
// closed before it returns.
func Extract(path, name string, opts ...Option) *Result {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger.With("path", path, "dataset", name)

	res := &Result{}
	c, err := o.opener.Open(path)
	if err != nil {
		log.Debug("open failed", "error", err)
		return res.fail(FailureOpenFile, err)
	}
	defer c.Close()

	ds, err := c.OpenDataset(name)
	if err != nil {
		log.Debug("dataset open failed", "error", err)
		return res.fail(FailureOpenDataset, err)
	}
	defer ds.Close()

	space, err := ds.Dataspace()
	if err != nil {
		log.Debug("dataspace query failed", "error", err)
		return res.fail(FailureDataspace, err)
	}
	if space.Null {
		return res.fail(FailureDataspace, errors.New("null dataspace holds no data"))
	}
	if space.Rank() > o.limits.MaxRank {
		log.Debug("rank too large", "rank", space.Rank(), "max", o.limits.MaxRank)
		return res.fail(FailureRankExceeded, fmt.Errorf("rank %d exceeds %d", space.Rank(), o.limits.MaxRank))
	}

	total, err := space.Elements()
	if err != nil {
		log.Debug("element count overflows", "error", err)
		return res.fail(FailureDataspace, err)
	}

	res.Rank = space.Rank()
	res.Shape = append(make([]uint64, 0, space.Rank()), space.Dims...)
	res.TotalSize = total

	data, err := ds.ReadFloat64()
	if err == nil && uint64(len(data)) != res.TotalSize {
		err = fmt.Errorf("read %d values, expected %d", len(data), res.TotalSize)
	}
	if err != nil {
		log.Debug("read failed", "error", err)
		return res.fail(FailureRead, err)
	}
	res.Data = data
	res.Metadata = metadata(ds, log)
	return res
}

func metadata(ds container.Dataset, log hclog.Logger) []Pair {
	attrs, err := ds.Attributes()
	if err != nil {
		log.Warn("listing attributes failed", "error", err)
	}
	if len(attrs) == 0 {
		return []Pair{{Key: PlaceholderKey, Value: PlaceholderValue}}
	}
	pairs := make([]Pair, 0, len(attrs))
	for _, a := range attrs {
		if a.Err != nil {
			log.Warn("attribute not decodable", "attribute", a.Name, "error", a.Err)
			pairs = append(pairs, Pair{Key: a.Name})
			continue
		}
		pairs = append(pairs, Pair{Key: a.Name, Value: format(a.Value)})
	}
	return pairs
}

// format renders an attribute value; slices print as "[a b c]".
func format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

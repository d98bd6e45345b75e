package scan

import (
	"context"
	"io"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tabio"
	"github.com/woainirjy/tabular/tqe"
)

// nullColumn marks a read-schema position whose column is absent from
// the physical file.  Older files written before a column was added
// to the table fill it with nulls.
const nullColumn = -2

// NewSplitReader opens one split and yields its records in exact
// read-schema shape: on-disk columns are decoded (restricted to the
// projection), partition columns are spliced in as constants, and
// columns the file predates are null-filled.  The projection is
// computed fresh from this file's data schema; it is never reused
// across files.
func NewSplitReader(ctx context.Context, engine storage.Engine, split Split, dataSchema, partitionSchema, readSchema *tabular.Schema, opts Options) (tabio.ReadCloser, error) {
	proj, err := tabular.Reconcile(readSchema, dataSchema, partitionSchema, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}
	if readSchema.Len() == 0 {
		return tabio.NopReadCloser(&constReader{}), nil
	}
	consts := make([]tabular.Value, readSchema.Len())
	for i, c := range readSchema.Columns {
		if proj[i] != tabular.PartitionColumn {
			continue
		}
		v, ok := split.PartitionValue(c.Name, opts.CaseSensitive)
		if !ok {
			return nil, tqe.E(tqe.Invalid, "split %s carries no value for partition column %q", split.URI, c.Name)
		}
		consts[i] = v
	}
	if proj.Empty() {
		// Partition-only read: every record is the same constant
		// tuple, so the row count from file metadata is all we need.
		n, err := countRecords(ctx, engine, split, opts)
		if err != nil {
			return nil, err
		}
		rec := tabular.NewRecord(readSchema, consts...)
		return tabio.NopReadCloser(&constReader{rec: rec, n: n}), nil
	}
	r, err := engine.Get(ctx, split.URI)
	if err != nil {
		return nil, err
	}
	fr, err := opts.Format.NewReader(r, proj.DataColumns(dataSchema))
	if err != nil {
		r.Close()
		return nil, err
	}
	fileSchema := fr.Schema()
	src := make([]int, readSchema.Len())
	for i, c := range readSchema.Columns {
		if proj[i] == tabular.PartitionColumn {
			src[i] = tabular.PartitionColumn
			continue
		}
		if j := fileSchema.Lookup(c.Name, opts.CaseSensitive); j >= 0 {
			src[i] = j
		} else {
			src[i] = nullColumn
		}
	}
	return &splitReader{
		src:    fr,
		closer: r,
		srcIdx: src,
		consts: consts,
		rec:    tabular.Record{Schema: readSchema, Values: make([]tabular.Value, readSchema.Len())},
	}, nil
}

func countRecords(ctx context.Context, engine storage.Engine, split Split, opts Options) (int64, error) {
	r, err := engine.Get(ctx, split.URI)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return opts.Format.Count(r)
}

// splitReader reorders each decoded record into read-schema shape.
// The yielded record is reused across Read calls.
type splitReader struct {
	src    tabio.Reader
	closer io.Closer
	srcIdx []int
	consts []tabular.Value
	rec    tabular.Record
}

func (s *splitReader) Read() (*tabular.Record, error) {
	rec, err := s.src.Read()
	if rec == nil || err != nil {
		return nil, err
	}
	for i, j := range s.srcIdx {
		switch j {
		case tabular.PartitionColumn:
			s.rec.Values[i] = s.consts[i]
		case nullColumn:
			s.rec.Values[i] = nil
		default:
			s.rec.Values[i] = rec.Values[j]
		}
	}
	return &s.rec, nil
}

func (s *splitReader) Close() error {
	return s.closer.Close()
}

// constReader yields the same record n times.  With a nil record it
// is the canonical empty reader.
type constReader struct {
	rec *tabular.Record
	n   int64
}

func (c *constReader) Read() (*tabular.Record, error) {
	if c.n <= 0 || c.rec == nil {
		return nil, nil
	}
	c.n--
	return c.rec, nil
}

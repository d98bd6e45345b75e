package scan

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tqe"
)

// BatchReader is the columnar decoder for one split.  Each Pull
// yields an arrow.Record of up to BatchSize rows in read-schema
// shape.  The fill source of every column is resolved once at open:
// either a decoded file column or a constant partition value repeated
// into every batch.  Callers own the returned records and must
// Release them.
type BatchReader struct {
	src     format.Reader
	closer  io.Closer
	builder *array.RecordBuilder
	srcIdx  []int
	consts  []tabular.Value
	size    int

	// remaining is the constant-row budget for partition-only reads;
	// -1 means rows come from src.
	remaining int64
	done      bool
}

func NewBatchReader(ctx context.Context, engine storage.Engine, split Split, dataSchema, partitionSchema, readSchema *tabular.Schema, opts Options) (*BatchReader, error) {
	if !opts.UseColumnar(readSchema) {
		return nil, tqe.E(tqe.Invalid, "schema not eligible for columnar scan")
	}
	proj, err := tabular.Reconcile(readSchema, dataSchema, partitionSchema, opts.CaseSensitive)
	if err != nil {
		return nil, err
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
	fields := make([]arrow.Field, readSchema.Len())
	for i, c := range readSchema.Columns {
		dt, err := arrowType(c.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	b := &BatchReader{
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil)),
		consts:    consts,
		size:      opts.batchSize(),
		remaining: -1,
	}
	if readSchema.Len() == 0 || proj.Empty() {
		b.remaining = 0
		if readSchema.Len() > 0 {
			n, err := countRecords(ctx, engine, split, opts)
			if err != nil {
				b.builder.Release()
				return nil, err
			}
			b.remaining = n
		}
		b.srcIdx = projIndexes(proj, nil, readSchema, opts.CaseSensitive)
		return b, nil
	}
	r, err := engine.Get(ctx, split.URI)
	if err != nil {
		b.builder.Release()
		return nil, err
	}
	fr, err := opts.Format.NewReader(r, proj.DataColumns(dataSchema))
	if err != nil {
		r.Close()
		b.builder.Release()
		return nil, err
	}
	b.src = fr
	b.closer = r
	b.srcIdx = projIndexes(proj, fr.Schema(), readSchema, opts.CaseSensitive)
	return b, nil
}

// projIndexes resolves each read-schema position to an index in the
// file reader's yielded schema, PartitionColumn for constants, or
// nullColumn when the file predates the column.
func projIndexes(proj tabular.Projection, fileSchema *tabular.Schema, readSchema *tabular.Schema, caseSensitive bool) []int {
	src := make([]int, readSchema.Len())
	for i, c := range readSchema.Columns {
		if proj[i] == tabular.PartitionColumn {
			src[i] = tabular.PartitionColumn
			continue
		}
		src[i] = nullColumn
		if fileSchema != nil {
			if j := fileSchema.Lookup(c.Name, caseSensitive); j >= 0 {
				src[i] = j
			}
		}
	}
	return src
}

// Pull returns the next batch, or (nil, nil) at end of split.
func (b *BatchReader) Pull() (arrow.Record, error) {
	if b.done {
		return nil, nil
	}
	var n int
	for n < b.size {
		if b.remaining >= 0 {
			if b.remaining == 0 {
				b.done = true
				break
			}
			if err := b.appendRow(nil); err != nil {
				return nil, err
			}
			b.remaining--
			n++
			continue
		}
		rec, err := b.src.Read()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			b.done = true
			break
		}
		if err := b.appendRow(rec); err != nil {
			return nil, err
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return b.builder.NewRecord(), nil
}

func (b *BatchReader) appendRow(rec *tabular.Record) error {
	for i, j := range b.srcIdx {
		var v tabular.Value
		switch {
		case j == tabular.PartitionColumn:
			v = b.consts[i]
		case j == nullColumn || rec == nil:
			v = nil
		default:
			v = rec.Values[j]
		}
		if err := appendValue(b.builder.Field(i), v); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchReader) Close() error {
	b.builder.Release()
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

func arrowType(t *tabular.Type) (arrow.DataType, error) {
	switch t.Kind {
	case tabular.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case tabular.KindInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case tabular.KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case tabular.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case tabular.KindString:
		return arrow.BinaryTypes.String, nil
	case tabular.KindBytes:
		return arrow.BinaryTypes.Binary, nil
	case tabular.KindTime:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	}
	return nil, tqe.E(tqe.Unsupported, "type %s has no columnar representation", t)
}

func appendValue(bldr array.Builder, v tabular.Value) error {
	if v == nil {
		bldr.AppendNull()
		return nil
	}
	switch bldr := bldr.(type) {
	case *array.BooleanBuilder:
		if v, ok := v.(bool); ok {
			bldr.Append(v)
			return nil
		}
	case *array.Int32Builder:
		if v, ok := v.(int32); ok {
			bldr.Append(v)
			return nil
		}
	case *array.Int64Builder:
		if v, ok := v.(int64); ok {
			bldr.Append(v)
			return nil
		}
	case *array.Float64Builder:
		if v, ok := v.(float64); ok {
			bldr.Append(v)
			return nil
		}
	case *array.StringBuilder:
		if v, ok := v.(string); ok {
			bldr.Append(v)
			return nil
		}
	case *array.BinaryBuilder:
		if v, ok := v.([]byte); ok {
			bldr.Append(v)
			return nil
		}
	case *array.TimestampBuilder:
		if v, ok := v.(time.Time); ok {
			bldr.Append(arrow.Timestamp(v.UnixNano()))
			return nil
		}
	}
	return tqe.E(tqe.Corrupt, "value %s does not fit column builder", tabular.FormatValue(v))
}

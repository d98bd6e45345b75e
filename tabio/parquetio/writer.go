// Package parquetio reads and writes Parquet files for the engine's
// data model using the fraugster parquet-go library.
package parquetio

import (
	"io"
	"time"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

type WriterOpts struct {
	// Compression names a parquet codec: "snappy" (default), "gzip",
	// or "none".
	Compression string
}

type Writer struct {
	w      io.WriteCloser
	fw     *goparquet.FileWriter
	schema *tabular.Schema
}

func NewWriter(w io.WriteCloser, schema *tabular.Schema, opts WriterOpts) (*Writer, error) {
	sd, err := newSchemaDefinition(schema)
	if err != nil {
		return nil, err
	}
	codec, err := ParseCompression(opts.Compression)
	if err != nil {
		return nil, err
	}
	fw := goparquet.NewFileWriter(w,
		goparquet.WithSchemaDefinition(sd),
		goparquet.WithCompressionCodec(codec),
	)
	return &Writer{w: w, fw: fw, schema: schema}, nil
}

// ParseCompression maps a codec name to its parquet enum value.
func ParseCompression(name string) (parquet.CompressionCodec, error) {
	switch name {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "none":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, tqe.E(tqe.Invalid, "parquet: unknown compression %q", name)
	}
}

func (w *Writer) Write(rec *tabular.Record) error {
	if len(rec.Values) != w.schema.Len() {
		return tqe.E(tqe.Invalid, "parquet: record has %d values, schema has %d columns", len(rec.Values), w.schema.Len())
	}
	data := make(map[string]interface{}, w.schema.Len())
	for i, c := range w.schema.Columns {
		v, err := newData(c.Type, rec.Values[i])
		if err != nil {
			return err
		}
		if v != nil {
			data[c.Name] = v
		}
	}
	return w.fw.AddData(data)
}

func (w *Writer) Close() error {
	err := w.fw.Close()
	if closeErr := w.w.Close(); err == nil {
		err = closeErr
	}
	return err
}

func newData(typ *tabular.Type, v tabular.Value) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typ.Kind {
	case tabular.KindBool:
		return v.(bool), nil
	case tabular.KindInt32:
		return v.(int32), nil
	case tabular.KindInt64:
		return v.(int64), nil
	case tabular.KindFloat64:
		return v.(float64), nil
	case tabular.KindString:
		return []byte(v.(string)), nil
	case tabular.KindBytes:
		return v.([]byte), nil
	case tabular.KindTime:
		return v.(time.Time).UnixNano(), nil
	case tabular.KindArray:
		vals := v.([]tabular.Value)
		elements := make([]map[string]interface{}, 0, len(vals))
		for _, elem := range vals {
			e, err := newData(typ.Elem, elem)
			if err != nil {
				return nil, err
			}
			elements = append(elements, map[string]interface{}{"element": e})
		}
		return map[string]interface{}{"list": elements}, nil
	case tabular.KindStruct:
		vals := v.([]tabular.Value)
		m := make(map[string]interface{}, len(typ.Fields))
		for i, f := range typ.Fields {
			fv, err := newData(f.Type, vals[i])
			if err != nil {
				return nil, err
			}
			if fv != nil {
				m[f.Name] = fv
			}
		}
		return m, nil
	case tabular.KindMap:
		vals := v.([]tabular.Value)
		elements := make([]map[string]interface{}, 0, len(vals)/2)
		for i := 0; i+1 < len(vals); i += 2 {
			key, err := newData(typ.Key, vals[i])
			if err != nil {
				return nil, err
			}
			val, err := newData(typ.Val, vals[i+1])
			if err != nil {
				return nil, err
			}
			elements = append(elements, map[string]interface{}{
				"key":   key,
				"value": val,
			})
		}
		return map[string]interface{}{"key_value": elements}, nil
	default:
		return nil, tqe.E(tqe.Unsupported, "parquet: cannot encode type %s", typ)
	}
}

package parquetio

import (
	"io"
	"time"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

// Reader decodes a parquet file.  A column restriction is pushed down
// to the parquet reader so unselected columns are never decoded.
// Yielded records carry the selected columns in file order.
type Reader struct {
	fr         *goparquet.FileReader
	fileSchema *tabular.Schema
	outSchema  *tabular.Schema
	vals       []tabular.Value
}

func NewReader(rs io.ReadSeeker, columns ...string) (*Reader, error) {
	fr, err := goparquet.NewFileReader(rs, columns...)
	if err != nil {
		return nil, tqe.E(tqe.Corrupt, err)
	}
	fileSchema, err := newSchema(fr.GetSchemaDefinition().RootColumn.Children)
	if err != nil {
		return nil, err
	}
	outSchema := fileSchema
	if columns != nil {
		want := make(map[string]struct{}, len(columns))
		for _, name := range columns {
			want[name] = struct{}{}
		}
		outSchema = &tabular.Schema{}
		for _, c := range fileSchema.Columns {
			if _, ok := want[c.Name]; ok {
				outSchema.Columns = append(outSchema.Columns, c)
			}
		}
	}
	return &Reader{
		fr:         fr,
		fileSchema: fileSchema,
		outSchema:  outSchema,
	}, nil
}

// Schema returns the schema of the records this reader yields.
func (r *Reader) Schema() *tabular.Schema {
	return r.outSchema
}

// FileSchema returns the full on-disk schema from the file footer.
func (r *Reader) FileSchema() *tabular.Schema {
	return r.fileSchema
}

// NumRows returns the record count from file metadata without
// decoding any column data.
func (r *Reader) NumRows() int64 {
	return r.fr.NumRows()
}

func (r *Reader) Read() (*tabular.Record, error) {
	data, err := r.fr.NextRow()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, tqe.E(tqe.Corrupt, err)
	}
	r.vals = r.vals[:0]
	for _, c := range r.outSchema.Columns {
		v, err := newValue(c.Type, data[c.Name])
		if err != nil {
			return nil, err
		}
		r.vals = append(r.vals, v)
	}
	return tabular.NewRecord(r.outSchema, r.vals...), nil
}

func newValue(typ *tabular.Type, v interface{}) (tabular.Value, error) {
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
		switch v := v.(type) {
		case float32:
			return float64(v), nil
		default:
			return v.(float64), nil
		}
	case tabular.KindString:
		return string(v.([]byte)), nil
	case tabular.KindBytes:
		return v.([]byte), nil
	case tabular.KindTime:
		return time.Unix(0, v.(int64)).UTC(), nil
	case tabular.KindArray:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, badShape(typ, v)
		}
		elements, ok := m["list"].([]map[string]interface{})
		if !ok {
			if m["list"] == nil {
				return tabular.Value([]tabular.Value{}), nil
			}
			return nil, badShape(typ, v)
		}
		vals := make([]tabular.Value, 0, len(elements))
		for _, e := range elements {
			ev, err := newValue(typ.Elem, e["element"])
			if err != nil {
				return nil, err
			}
			vals = append(vals, ev)
		}
		return tabular.Value(vals), nil
	case tabular.KindStruct:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, badShape(typ, v)
		}
		vals := make([]tabular.Value, 0, len(typ.Fields))
		for _, f := range typ.Fields {
			fv, err := newValue(f.Type, m[f.Name])
			if err != nil {
				return nil, err
			}
			vals = append(vals, fv)
		}
		return tabular.Value(vals), nil
	case tabular.KindMap:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, badShape(typ, v)
		}
		elements, ok := m["key_value"].([]map[string]interface{})
		if !ok {
			if m["key_value"] == nil {
				return tabular.Value([]tabular.Value{}), nil
			}
			return nil, badShape(typ, v)
		}
		vals := make([]tabular.Value, 0, 2*len(elements))
		for _, e := range elements {
			key, err := newValue(typ.Key, e["key"])
			if err != nil {
				return nil, err
			}
			val, err := newValue(typ.Val, e["value"])
			if err != nil {
				return nil, err
			}
			vals = append(vals, key, val)
		}
		return tabular.Value(vals), nil
	default:
		return nil, tqe.E(tqe.Unsupported, "parquet: cannot decode type %s", typ)
	}
}

func badShape(typ *tabular.Type, v interface{}) error {
	return tqe.E(tqe.Corrupt, "parquet: unexpected value shape %T for type %s", v, typ)
}

package tabular

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Value holds one column value as a Go native: nil for null, and
// otherwise bool, int32, int64, float64, string, []byte, time.Time,
// or []Value for arrays and structs (struct values follow the field
// order of their type).
type Value interface{}

// Record is one row of a table.  Values are positionally aligned with
// Schema.Columns.
type Record struct {
	Schema *Schema
	Values []Value
}

func NewRecord(schema *Schema, values ...Value) *Record {
	return &Record{Schema: schema, Values: values}
}

// Copy returns a record safe to retain across calls to a reader's
// Read method.
func (r *Record) Copy() *Record {
	return &Record{Schema: r.Schema, Values: slices.Clone(r.Values)}
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range r.Values {
		if i > 0 {
			b.WriteByte(',')
		}
		if r.Schema != nil && i < len(r.Schema.Columns) {
			b.WriteString(r.Schema.Columns[i].Name)
			b.WriteByte(':')
		}
		b.WriteString(FormatValue(v))
	}
	b.WriteByte('}')
	return b.String()
}

func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return fmt.Sprintf("0x%x", v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []Value:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

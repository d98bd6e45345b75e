// Package rowsio reads and writes the engine's native row format: a
// self-describing header followed by LZ4-compressed frames of
// length-prefixed binary records.
//
// Layout:
//
//	magic "TBR1"
//	uint32 header length, JSON schema
//	frames: uint32 record count, uint32 uncompressed length,
//	        uint32 compressed length (0 = stored raw), payload
//
// End of stream is a clean EOF at a frame boundary.
package rowsio

import (
	"encoding/json"
	"fmt"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

var Magic = []byte("TBR1")

// DefaultFrameThreshold is the uncompressed frame size that triggers
// a flush.
const DefaultFrameThreshold = 128 * 1024

const maxFrameSize = 64 * 1024 * 1024

type columnJSON struct {
	Name string   `json:"name"`
	Type typeJSON `json:"type"`
}

type typeJSON struct {
	Kind   string       `json:"kind"`
	Elem   *typeJSON    `json:"elem,omitempty"`
	Fields []columnJSON `json:"fields,omitempty"`
	Key    *typeJSON    `json:"key,omitempty"`
	Val    *typeJSON    `json:"val,omitempty"`
}

var kindNames = map[tabular.Kind]string{
	tabular.KindNull:    "null",
	tabular.KindBool:    "bool",
	tabular.KindInt32:   "int32",
	tabular.KindInt64:   "int64",
	tabular.KindFloat64: "float64",
	tabular.KindString:  "string",
	tabular.KindBytes:   "bytes",
	tabular.KindTime:    "time",
	tabular.KindArray:   "array",
	tabular.KindStruct:  "struct",
	tabular.KindMap:     "map",
}

var kindValues = func() map[string]tabular.Kind {
	m := make(map[string]tabular.Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func marshalSchema(s *tabular.Schema) ([]byte, error) {
	cols := make([]columnJSON, 0, s.Len())
	for _, c := range s.Columns {
		t, err := marshalType(c.Type)
		if err != nil {
			return nil, err
		}
		cols = append(cols, columnJSON{Name: c.Name, Type: *t})
	}
	return json.Marshal(cols)
}

func marshalType(t *tabular.Type) (*typeJSON, error) {
	name, ok := kindNames[t.Kind]
	if !ok {
		return nil, fmt.Errorf("rowsio: unknown kind %d", t.Kind)
	}
	out := &typeJSON{Kind: name}
	var err error
	switch t.Kind {
	case tabular.KindArray:
		if out.Elem, err = marshalType(t.Elem); err != nil {
			return nil, err
		}
	case tabular.KindMap:
		if out.Key, err = marshalType(t.Key); err != nil {
			return nil, err
		}
		if out.Val, err = marshalType(t.Val); err != nil {
			return nil, err
		}
	case tabular.KindStruct:
		for _, f := range t.Fields {
			ft, err := marshalType(f.Type)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, columnJSON{Name: f.Name, Type: *ft})
		}
	}
	return out, nil
}

func unmarshalSchema(b []byte) (*tabular.Schema, error) {
	var cols []columnJSON
	if err := json.Unmarshal(b, &cols); err != nil {
		return nil, tqe.E(tqe.Corrupt, "rowsio: bad schema header: %s", err)
	}
	schema := &tabular.Schema{}
	for _, c := range cols {
		t, err := unmarshalType(&c.Type)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, tabular.Column{Name: c.Name, Type: t})
	}
	return schema, nil
}

func unmarshalType(t *typeJSON) (*tabular.Type, error) {
	kind, ok := kindValues[t.Kind]
	if !ok {
		return nil, tqe.E(tqe.Corrupt, "rowsio: unknown type kind %q", t.Kind)
	}
	switch kind {
	case tabular.KindArray:
		elem, err := unmarshalType(t.Elem)
		if err != nil {
			return nil, err
		}
		return tabular.ArrayOf(elem), nil
	case tabular.KindMap:
		key, err := unmarshalType(t.Key)
		if err != nil {
			return nil, err
		}
		val, err := unmarshalType(t.Val)
		if err != nil {
			return nil, err
		}
		return tabular.MapOf(key, val), nil
	case tabular.KindStruct:
		fields := make([]tabular.Column, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := unmarshalType(&f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, tabular.Column{Name: f.Name, Type: ft})
		}
		return tabular.StructOf(fields...), nil
	case tabular.KindNull:
		return tabular.TypeNull, nil
	case tabular.KindBool:
		return tabular.TypeBool, nil
	case tabular.KindInt32:
		return tabular.TypeInt32, nil
	case tabular.KindInt64:
		return tabular.TypeInt64, nil
	case tabular.KindFloat64:
		return tabular.TypeFloat64, nil
	case tabular.KindString:
		return tabular.TypeString, nil
	case tabular.KindBytes:
		return tabular.TypeBytes, nil
	default:
		return tabular.TypeTime, nil
	}
}

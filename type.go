// Package tabular implements the data model shared by the read and
// write paths of the file-table engine: types, schemas, records, and
// the per-file column projection.
package tabular

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindTime
	KindArray
	KindStruct
	KindMap
)

// Type describes the shape of one column.  Elem is set for arrays,
// Fields for structs, and Key/Val for maps.  Primitive types share
// the singletons below so Type values can be compared with Equal.
type Type struct {
	Kind   Kind
	Elem   *Type
	Fields []Column
	Key    *Type
	Val    *Type
}

var (
	TypeNull    = &Type{Kind: KindNull}
	TypeBool    = &Type{Kind: KindBool}
	TypeInt32   = &Type{Kind: KindInt32}
	TypeInt64   = &Type{Kind: KindInt64}
	TypeFloat64 = &Type{Kind: KindFloat64}
	TypeString  = &Type{Kind: KindString}
	TypeBytes   = &Type{Kind: KindBytes}
	TypeTime    = &Type{Kind: KindTime}
)

func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

func StructOf(fields ...Column) *Type {
	return &Type{Kind: KindStruct, Fields: fields}
}

func MapOf(key, val *Type) *Type {
	return &Type{Kind: KindMap, Key: key, Val: val}
}

// Primitive reports whether t is an atomic type.  Nested types force
// the row-oriented decode path.
func (t *Type) Primitive() bool {
	switch t.Kind {
	case KindArray, KindStruct, KindMap, KindNull:
		return false
	}
	return true
}

func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil || t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equal(u.Elem)
	case KindMap:
		return t.Key.Equal(u.Key) && t.Val.Equal(u.Val)
	case KindStruct:
		if len(t.Fields) != len(u.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != u.Fields[i].Name || !t.Fields[i].Type.Equal(u.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

func (t *Type) String() string {
	switch t.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindArray:
		return "[" + t.Elem.String() + "]"
	case KindMap:
		return fmt.Sprintf("|{%s:%s}|", t.Key, t.Val)
	case KindStruct:
		var b strings.Builder
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Name)
			b.WriteByte(':')
			b.WriteString(f.Type.String())
		}
		b.WriteByte('}')
		return b.String()
	default:
		return fmt.Sprintf("type-%d", t.Kind)
	}
}

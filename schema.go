package tabular

import (
	"strings"

	"github.com/woainirjy/tabular/tqe"
	"golang.org/x/exp/slices"
)

// Column is one (name, type) pair of a schema.
type Column struct {
	Name string
	Type *Type
}

// Schema is an ordered sequence of columns.  Three instances matter
// to the engine: the data schema (full on-disk layout), the partition
// schema (constant columns derived from a file's location), and the
// read schema (exactly the columns and order a consumer needs).
type Schema struct {
	Columns []Column
}

func NewSchema(columns ...Column) *Schema {
	return &Schema{Columns: slices.Clone(columns)}
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Columns)
}

// Lookup returns the position of the named column or -1.  Matching
// honors the engine's case-sensitivity policy.
func (s *Schema) Lookup(name string, caseSensitive bool) int {
	if s == nil {
		return -1
	}
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
		if !caseSensitive && strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Schema) Names() []string {
	names := make([]string, 0, s.Len())
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

func (s *Schema) Equal(u *Schema) bool {
	if s.Len() != u.Len() {
		return false
	}
	for i, c := range s.Columns {
		if c.Name != u.Columns[i].Name || !c.Type.Equal(u.Columns[i].Type) {
			return false
		}
	}
	return true
}

// Validate checks global structural rules: at least one column, no
// empty or dot-containing names, and no duplicates under the given
// case policy.
func (s *Schema) Validate(caseSensitive bool) error {
	if s.Len() == 0 {
		return tqe.E(tqe.Invalid, "schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return tqe.E(tqe.Invalid, "schema has an empty column name")
		}
		if strings.ContainsAny(c.Name, ".\x00") {
			return tqe.E(tqe.Invalid, "invalid column name %q", c.Name)
		}
		key := c.Name
		if !caseSensitive {
			key = strings.ToLower(key)
		}
		if _, ok := seen[key]; ok {
			return tqe.E(tqe.Invalid, "duplicate column name %q", c.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(c.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Package format registers the physical file formats a table can be
// stored in and the per-format knobs the planner and scanner need:
// a type-support predicate, reader and writer factories, and the
// writer preparation hook run once per write job.
package format

import (
	"io"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tabio"
	"github.com/woainirjy/tabular/tqe"
)

// Reader yields the records of one physical file, restricted to any
// column selection given at open.
type Reader interface {
	tabio.Reader
	// Schema describes the records Read yields.
	Schema() *tabular.Schema
}

type Writer interface {
	tabio.Writer
	io.Closer
}

type Format interface {
	Name() string
	Extension() string

	// TypeSupported reports whether the format can store a column of
	// type t.  The planner rejects a write of any schema containing
	// an unsupported type before touching storage.
	TypeSupported(t *tabular.Type) bool

	// Prepare is the writer-factory preparation hook.  It runs once
	// per write job, before any task writer is created, and may
	// mutate opts to declare shared job configuration such as a
	// default compression codec.
	Prepare(schema *tabular.Schema, opts map[string]string) error

	// NewReader opens one file.  A nil columns slice selects every
	// column; otherwise only the named columns are decoded.
	NewReader(r storage.Reader, columns []string) (Reader, error)

	// Count returns the file's record count from metadata alone,
	// without decoding column data.
	Count(r storage.Reader) (int64, error)

	NewWriter(w io.WriteCloser, schema *tabular.Schema, opts map[string]string) (Writer, error)
}

var formats = map[string]Format{
	"rows":    Rows{},
	"parquet": Parquet{},
}

func Lookup(name string) (Format, error) {
	if f, ok := formats[name]; ok {
		return f, nil
	}
	return nil, tqe.E(tqe.Unsupported, "unknown file format %q", name)
}

func Extension(name string) string {
	if f, ok := formats[name]; ok {
		return f.Extension()
	}
	return ""
}

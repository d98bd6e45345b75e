package format

import (
	"io"
	"strconv"

	"github.com/alecthomas/units"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tabio/rowsio"
	"github.com/woainirjy/tabular/tqe"
)

// Rows is the engine's native row format.
type Rows struct{}

var _ Format = (*Rows)(nil)

func (Rows) Name() string      { return "rows" }
func (Rows) Extension() string { return ".rows" }

func (Rows) TypeSupported(t *tabular.Type) bool {
	return t.Kind != tabular.KindNull
}

func (Rows) Prepare(schema *tabular.Schema, opts map[string]string) error {
	if s, ok := opts["frame_threshold"]; ok {
		n, err := units.ParseStrictBytes(s)
		if err != nil {
			return tqe.E(tqe.Invalid, "rows: bad frame_threshold %q: %s", s, err)
		}
		opts["frame_threshold"] = strconv.FormatInt(n, 10)
	}
	return nil
}

func (Rows) NewReader(r storage.Reader, columns []string) (Reader, error) {
	return rowsio.NewReader(r, columns...)
}

func (Rows) Count(r storage.Reader) (int64, error) {
	return rowsio.Count(r)
}

func (Rows) NewWriter(w io.WriteCloser, schema *tabular.Schema, opts map[string]string) (Writer, error) {
	var wopts rowsio.WriterOpts
	if s, ok := opts["frame_threshold"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, tqe.E(tqe.Invalid, "rows: bad frame_threshold %q", s)
		}
		wopts.FrameThreshold = n
	}
	return rowsio.NewWriter(w, schema, wopts), nil
}

package format

import (
	"io"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tabio/parquetio"
)

type Parquet struct{}

var _ Format = (*Parquet)(nil)

func (Parquet) Name() string      { return "parquet" }
func (Parquet) Extension() string { return ".parquet" }

func (p Parquet) TypeSupported(t *tabular.Type) bool {
	switch t.Kind {
	case tabular.KindNull:
		return false
	case tabular.KindArray:
		return p.TypeSupported(t.Elem)
	case tabular.KindMap:
		return p.TypeSupported(t.Key) && p.TypeSupported(t.Val)
	case tabular.KindStruct:
		if len(t.Fields) == 0 {
			return false
		}
		for _, f := range t.Fields {
			if !p.TypeSupported(f.Type) {
				return false
			}
		}
		return true
	}
	return true
}

// Prepare declares the job's compression codec when the caller didn't
// choose one, so every task writer uses the same codec.
func (Parquet) Prepare(schema *tabular.Schema, opts map[string]string) error {
	if _, ok := opts["compression"]; !ok {
		opts["compression"] = "snappy"
	}
	_, err := parquetio.ParseCompression(opts["compression"])
	return err
}

func (Parquet) NewReader(r storage.Reader, columns []string) (Reader, error) {
	rs, err := storage.NewSeeker(r)
	if err != nil {
		return nil, err
	}
	return parquetio.NewReader(rs, columns...)
}

func (Parquet) Count(r storage.Reader) (int64, error) {
	rs, err := storage.NewSeeker(r)
	if err != nil {
		return 0, err
	}
	pr, err := parquetio.NewReader(rs)
	if err != nil {
		return 0, err
	}
	return pr.NumRows(), nil
}

func (Parquet) NewWriter(w io.WriteCloser, schema *tabular.Schema, opts map[string]string) (Writer, error) {
	return parquetio.NewWriter(w, schema, parquetio.WriterOpts{
		Compression: opts["compression"],
	})
}

package tabio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tabio"
)

var schema = tabular.NewSchema(tabular.Column{Name: "n", Type: tabular.TypeInt64})

type sliceReader struct {
	recs []*tabular.Record
}

func (s *sliceReader) Read() (*tabular.Record, error) {
	if len(s.recs) == 0 {
		return nil, nil
	}
	rec := s.recs[0]
	s.recs = s.recs[1:]
	return rec, nil
}

func TestConcatReader(t *testing.T) {
	a := &sliceReader{recs: []*tabular.Record{tabular.NewRecord(schema, int64(1))}}
	b := &sliceReader{recs: []*tabular.Record{
		tabular.NewRecord(schema, int64(2)),
		tabular.NewRecord(schema, int64(3)),
	}}
	out, err := tabio.ReadAll(tabio.ConcatReader(a, b))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, rec := range out {
		assert.EqualValues(t, i+1, rec.Values[0])
	}
}

func TestReadAllCopies(t *testing.T) {
	rec := tabular.NewRecord(schema, int64(7))
	out, err := tabio.ReadAll(&sliceReader{recs: []*tabular.Record{rec}})
	require.NoError(t, err)
	rec.Values[0] = int64(0)
	assert.EqualValues(t, 7, out[0].Values[0])
}

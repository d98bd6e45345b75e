package scan_test

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/scan"
	"github.com/woainirjy/tabular/tqe"
)

func columnarOptions() scan.Options {
	return scan.Options{
		Format:     format.Rows{},
		Vectorized: true,
		WholeStage: true,
		BatchSize:  2,
	}
}

func TestUseColumnarGating(t *testing.T) {
	primitive := tabular.NewSchema(
		tabular.Column{Name: "id", Type: tabular.TypeInt64},
		tabular.Column{Name: "name", Type: tabular.TypeString},
	)
	nested := tabular.NewSchema(
		tabular.Column{Name: "tags", Type: tabular.ArrayOf(tabular.TypeString)},
	)
	opts := columnarOptions()
	assert.True(t, opts.UseColumnar(primitive))
	assert.False(t, opts.UseColumnar(nested))

	opts.Vectorized = false
	assert.False(t, opts.UseColumnar(primitive))

	opts = columnarOptions()
	opts.WholeStage = false
	assert.False(t, opts.UseColumnar(primitive))

	opts = columnarOptions()
	opts.BatchWidth = 1
	assert.False(t, opts.UseColumnar(primitive))
}

func TestBatchReaderConstantFill(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("f.rows")
	putFile(t, engine, u, encodeRows(t, dataSchema,
		tabular.NewRecord(dataSchema, int64(1), "one"),
		tabular.NewRecord(dataSchema, int64(2), "two"),
		tabular.NewRecord(dataSchema, int64(3), "three"),
	))
	readSchema := tabular.NewSchema(
		tabular.Column{Name: "day", Type: tabular.TypeString},
		tabular.Column{Name: "id", Type: tabular.TypeInt64},
	)
	br, err := scan.NewBatchReader(ctx, engine, rowsSplit(u, "d1"), dataSchema, partSchema, readSchema, columnarOptions())
	require.NoError(t, err)
	defer br.Close()

	batch, err := br.Pull()
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.EqualValues(t, 2, batch.NumRows())
	days := batch.Column(0).(*array.String)
	ids := batch.Column(1).(*array.Int64)
	assert.Equal(t, "d1", days.Value(0))
	assert.Equal(t, "d1", days.Value(1))
	assert.EqualValues(t, 1, ids.Value(0))
	assert.EqualValues(t, 2, ids.Value(1))
	batch.Release()

	batch, err = br.Pull()
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.EqualValues(t, 1, batch.NumRows())
	assert.EqualValues(t, 3, batch.Column(1).(*array.Int64).Value(0))
	batch.Release()

	batch, err = br.Pull()
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestBatchReaderPartitionOnly(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("f.rows")
	putFile(t, engine, u, encodeRows(t, dataSchema,
		tabular.NewRecord(dataSchema, int64(1), "one"),
		tabular.NewRecord(dataSchema, int64(2), "two"),
		tabular.NewRecord(dataSchema, int64(3), "three"),
	))
	readSchema := tabular.NewSchema(tabular.Column{Name: "day", Type: tabular.TypeString})
	br, err := scan.NewBatchReader(ctx, engine, rowsSplit(u, "d1"), dataSchema, partSchema, readSchema, columnarOptions())
	require.NoError(t, err)
	defer br.Close()

	var rows int64
	for {
		batch, err := br.Pull()
		require.NoError(t, err)
		if batch == nil {
			break
		}
		days := batch.Column(0).(*array.String)
		for i := 0; i < days.Len(); i++ {
			assert.Equal(t, "d1", days.Value(i))
		}
		rows += batch.NumRows()
		batch.Release()
	}
	assert.EqualValues(t, 3, rows)
}

func TestBatchReaderDeclinesNestedSchema(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewLocalEngine()
	u := storage.MustParseURI(t.TempDir()).JoinPath("f.rows")
	nested := tabular.NewSchema(tabular.Column{Name: "tags", Type: tabular.ArrayOf(tabular.TypeString)})
	_, err := scan.NewBatchReader(ctx, engine, scan.Split{URI: u}, nested, tabular.NewSchema(), nested, columnarOptions())
	require.Error(t, err)
	assert.True(t, tqe.IsInvalid(err))
}

package write_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/commit"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/scan"
	"github.com/woainirjy/tabular/table"
	"github.com/woainirjy/tabular/tqe"
	"github.com/woainirjy/tabular/write"
	"golang.org/x/sync/errgroup"
)

var outSchema = tabular.NewSchema(
	tabular.Column{Name: "id", Type: tabular.TypeInt64},
	tabular.Column{Name: "name", Type: tabular.TypeString},
)

func testTable(t *testing.T) (storage.Engine, *storage.URI, *table.Descriptor) {
	t.Helper()
	engine := storage.NewLocalEngine()
	target := storage.MustParseURI(t.TempDir())
	return engine, target, table.NewDescriptor("events", target, "rows")
}

func newBuilder(engine storage.Engine, target *storage.URI, desc *table.Descriptor) *write.Builder {
	return write.NewBuilder(engine, target).
		Schema(outSchema).
		JobID(ksuid.New()).
		Mode(write.Append).
		Table(desc)
}

func record(id int64, name string) *tabular.Record {
	return tabular.NewRecord(outSchema, id, name)
}

func writeRecords(t *testing.T, batch *write.Batch, taskID string, recs ...*tabular.Record) commit.Message {
	t.Helper()
	tw, err := batch.NewTaskWriter(context.Background(), taskID)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, tw.Write(rec))
	}
	msg, err := tw.Close()
	require.NoError(t, err)
	return msg
}

func targetFiles(t *testing.T, engine storage.Engine, target *storage.URI) []string {
	t.Helper()
	infos, err := engine.List(context.Background(), target)
	if err != nil {
		require.True(t, tqe.IsNotFound(err))
		return nil
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

func scanBack(t *testing.T, engine storage.Engine, target *storage.URI) []string {
	t.Helper()
	var splits []scan.Split
	for _, name := range targetFiles(t, engine, target) {
		splits = append(splits, scan.Split{URI: target.JoinPath(name)})
	}
	r := scan.NewPartitionReader(context.Background(), engine, splits, outSchema, tabular.NewSchema(), outSchema, scan.Options{Format: format.Rows{}})
	defer r.Close()
	var out []string
	for {
		rec, err := r.Read()
		require.NoError(t, err)
		if rec == nil {
			sort.Strings(out)
			return out
		}
		out = append(out, rec.String())
	}
}

func TestBuilderValidation(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)

	_, err := write.NewBuilder(engine, target).JobID(ksuid.New()).Mode(write.Append).Table(desc).Build(ctx)
	assert.True(t, tqe.IsInvalid(err), "missing schema: %v", err)

	_, err = write.NewBuilder(engine, target).Schema(outSchema).Mode(write.Append).Table(desc).Build(ctx)
	assert.True(t, tqe.IsInvalid(err), "missing job id: %v", err)

	_, err = write.NewBuilder(engine, target).Schema(outSchema).JobID(ksuid.New()).Table(desc).Build(ctx)
	assert.True(t, tqe.IsInvalid(err), "missing mode: %v", err)

	_, err = write.NewBuilder(engine, target).Schema(outSchema).JobID(ksuid.New()).Mode(write.Append).Build(ctx)
	assert.True(t, tqe.IsInvalid(err), "missing table: %v", err)
}

func TestBuilderUnsupportedColumnType(t *testing.T) {
	engine, target, desc := testTable(t)
	bad := tabular.NewSchema(
		tabular.Column{Name: "id", Type: tabular.TypeInt64},
		tabular.Column{Name: "nothing", Type: tabular.TypeNull},
	)
	_, err := newBuilder(engine, target, desc).Schema(bad).Build(context.Background())
	require.Error(t, err)
	assert.True(t, tqe.IsUnsupported(err))
	assert.Contains(t, err.Error(), "nothing")
	assert.Contains(t, err.Error(), "rows")
}

func TestBuilderCapabilityCheck(t *testing.T) {
	engine, target, desc := testTable(t)
	desc.Capabilities = table.Capabilities(table.BatchRead)
	_, err := newBuilder(engine, target, desc).Build(context.Background())
	require.Error(t, err)
	assert.True(t, tqe.IsUnsupported(err))
}

func TestErrorIfExistsNoMutation(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	require.NoError(t, storage.Put(ctx, engine, target.JoinPath("old"), strings.NewReader("x")))

	_, err := newBuilder(engine, target, desc).Mode(write.ErrorIfExists).Build(ctx)
	require.Error(t, err)
	assert.True(t, tqe.IsExists(err))
	assert.Contains(t, err.Error(), target.String())
	assert.Equal(t, []string{"old"}, targetFiles(t, engine, target))
}

func TestErrorIfExistsEmptyDestination(t *testing.T) {
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).Mode(write.ErrorIfExists).Build(context.Background())
	require.NoError(t, err)
	assert.False(t, batch.NoOp())
}

func TestIgnoreIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	require.NoError(t, storage.Put(ctx, engine, target.JoinPath("old"), strings.NewReader("x")))

	batch, err := newBuilder(engine, target, desc).Mode(write.Ignore).Build(ctx)
	require.NoError(t, err)
	assert.True(t, batch.NoOp())
	_, err = batch.NewTaskWriter(ctx, "task-0")
	assert.Error(t, err)
	require.NoError(t, batch.Commit(ctx, nil))
	assert.Equal(t, []string{"old"}, targetFiles(t, engine, target))
}

func TestAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).Build(ctx)
	require.NoError(t, err)

	msg := writeRecords(t, batch, "task-0",
		record(1, "one"), record(2, "two"), record(3, "three"))
	assert.EqualValues(t, 3, msg.Count)
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))

	assert.Equal(t, []string{
		`{id:1,name:"one"}`,
		`{id:2,name:"two"}`,
		`{id:3,name:"three"}`,
	}, scanBack(t, engine, target))
}

func TestOverwriteLeavesOnlyNewFiles(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	for i := 0; i < 3; i++ {
		u := target.JoinPath(fmt.Sprintf("old%d", i))
		require.NoError(t, storage.Put(ctx, engine, u, strings.NewReader("stale")))
	}

	batch, err := newBuilder(engine, target, desc).Mode(write.Overwrite).Build(ctx)
	require.NoError(t, err)
	msg := writeRecords(t, batch, "task-0", record(7, "seven"))
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))

	names := targetFiles(t, engine, target)
	require.Len(t, names, 1)
	assert.True(t, strings.HasSuffix(names[0], ".rows"), names[0])
	assert.Equal(t, []string{`{id:7,name:"seven"}`}, scanBack(t, engine, target))
}

func TestAbortLeavesNothing(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).Build(ctx)
	require.NoError(t, err)
	tw, err := batch.NewTaskWriter(ctx, "task-0")
	require.NoError(t, err)
	require.NoError(t, tw.Write(record(1, "one")))
	require.NoError(t, tw.Abort())
	require.NoError(t, batch.Abort(ctx))
	assert.Empty(t, targetFiles(t, engine, target))
}

func TestFileRotation(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).
		Option("records_per_file", "2").
		Build(ctx)
	require.NoError(t, err)

	msg := writeRecords(t, batch, "task-0",
		record(1, "a"), record(2, "b"), record(3, "c"), record(4, "d"), record(5, "e"))
	assert.Len(t, msg.Files, 3)
	assert.EqualValues(t, 5, msg.Count)
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))
	assert.Len(t, scanBack(t, engine, target), 5)
}

func TestBucketedWrite(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).
		BucketBy(func(rec *tabular.Record) int {
			return int(rec.Values[0].(int64) % 2)
		}).
		Build(ctx)
	require.NoError(t, err)

	msg := writeRecords(t, batch, "task-0",
		record(1, "odd"), record(2, "even"), record(3, "odd"))
	require.Len(t, msg.Files, 2)
	joined := strings.Join(msg.Files, ",")
	assert.Contains(t, joined, "_b00000")
	assert.Contains(t, joined, "_b00001")
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))
	assert.Len(t, scanBack(t, engine, target), 3)
}

func TestMultiTaskWrite(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	batch, err := newBuilder(engine, target, desc).Build(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var messages []commit.Message
	var group errgroup.Group
	for task := 0; task < 3; task++ {
		task := task
		group.Go(func() error {
			tw, err := batch.NewTaskWriter(ctx, fmt.Sprintf("task-%d", task))
			if err != nil {
				return err
			}
			for i := 0; i < 10; i++ {
				if err := tw.Write(record(int64(task*100+i), "r")); err != nil {
					return err
				}
			}
			msg, err := tw.Close()
			if err != nil {
				return err
			}
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, group.Wait())
	require.NoError(t, batch.Commit(ctx, messages))
	assert.Len(t, scanBack(t, engine, target), 30)
}

func TestJobOptionParsing(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)

	batch, err := newBuilder(engine, target, desc).
		Option("records_per_file", "100").
		Option("target_file_size", "4MiB").
		Option("timezone", "America/New_York").
		Build(ctx)
	require.NoError(t, err)
	job, err := batch.Job()
	require.NoError(t, err)
	assert.EqualValues(t, 100, job.MaxRecordsPerFile)
	assert.EqualValues(t, 4<<20, job.TargetFileSize)
	require.NotNil(t, job.Timezone)
	assert.Equal(t, "America/New_York", job.Timezone.String())

	batch, err = newBuilder(engine, target, desc).Option("records_per_file", "zero").Build(ctx)
	require.NoError(t, err)
	_, err = batch.Job()
	assert.True(t, tqe.IsInvalid(err))

	batch, err = newBuilder(engine, target, desc).Option("timezone", "Mars/Olympus").Build(ctx)
	require.NoError(t, err)
	_, err = batch.Job()
	assert.True(t, tqe.IsInvalid(err))
}

func TestTrackers(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	sketcher := write.NewFieldSketcher(outSchema)
	rate := write.NewRateTracker()
	batch, err := newBuilder(engine, target, desc).
		Track(func() write.Tracker { return sketcher }).
		Track(func() write.Tracker { return rate }).
		Build(ctx)
	require.NoError(t, err)

	msg := writeRecords(t, batch, "task-0",
		record(1, "a"), record(2, "a"), record(3, "b"))
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))
	assert.InDelta(t, 3, float64(sketcher.Distinct("id")), 1)
	assert.InDelta(t, 2, float64(sketcher.Distinct("name")), 1)
}

func TestPartitionColumnsStripped(t *testing.T) {
	ctx := context.Background()
	engine, target, desc := testTable(t)
	schema := tabular.NewSchema(
		tabular.Column{Name: "id", Type: tabular.TypeInt64},
		tabular.Column{Name: "day", Type: tabular.TypeString},
	)
	batch, err := newBuilder(engine, target, desc).
		Schema(schema).
		Partition(tabular.NewSchema(tabular.Column{Name: "day", Type: tabular.TypeString})).
		Build(ctx)
	require.NoError(t, err)
	job, err := batch.Job()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, job.DataSchema().Names())

	tw, err := batch.NewTaskWriter(ctx, "task-0")
	require.NoError(t, err)
	require.NoError(t, tw.Write(tabular.NewRecord(schema, int64(1), "d1")))
	msg, err := tw.Close()
	require.NoError(t, err)
	require.NoError(t, batch.Commit(ctx, []commit.Message{msg}))

	// The staged file holds only the data column.
	names := targetFiles(t, engine, target)
	require.Len(t, names, 1)
	r := scan.NewPartitionReader(ctx, engine,
		[]scan.Split{{URI: target.JoinPath(names[0]), Partition: map[string]tabular.Value{"day": "d1"}}},
		tabular.NewSchema(tabular.Column{Name: "id", Type: tabular.TypeInt64}),
		tabular.NewSchema(tabular.Column{Name: "day", Type: tabular.TypeString}),
		schema, scan.Options{Format: format.Rows{}})
	defer r.Close()
	rec, err := r.Read()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, `{id:1,day:"d1"}`, rec.String())
}

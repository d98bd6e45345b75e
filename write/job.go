package write

import (
	"strconv"
	"time"

	"github.com/alecthomas/units"
	"github.com/segmentio/ksuid"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tqe"
)

// Job is the immutable description of one write shared read-only by
// every task.  It is built once per batch handle, after the format's
// Prepare hook has run, and never mutated afterwards.
type Job struct {
	ID                ksuid.KSUID
	Target            *storage.URI
	Schema            *tabular.Schema
	DataColumns       []tabular.Column
	PartitionColumns  []tabular.Column
	Bucket            func(*tabular.Record) int
	FileLocations     map[string]*storage.URI
	MaxRecordsPerFile int64
	TargetFileSize    int64
	Timezone          *time.Location
	Trackers          []TrackerFactory
	Format            format.Format
	Options           map[string]string

	dataSchema *tabular.Schema
	dataIdx    []int
}

func newJob(b *Builder, f format.Format) (*Job, error) {
	var dataColumns, partColumns []tabular.Column
	var dataIdx []int
	for i, c := range b.schema.Columns {
		if b.partition != nil && b.partition.Lookup(c.Name, b.caseSensitive) >= 0 {
			partColumns = append(partColumns, c)
			continue
		}
		dataColumns = append(dataColumns, c)
		dataIdx = append(dataIdx, i)
	}
	if len(dataColumns) == 0 {
		return nil, tqe.E(tqe.Invalid, "every output column is a partition column")
	}
	opts := make(map[string]string, len(b.opts))
	for k, v := range b.opts {
		opts[k] = v
	}
	job := &Job{
		ID:               b.jobID,
		Target:           b.target,
		Schema:           b.schema,
		DataColumns:      dataColumns,
		PartitionColumns: partColumns,
		Bucket:           b.bucket,
		FileLocations:    b.locations,
		Trackers:         b.trackers,
		Format:           f,
		Options:          opts,
		dataSchema:       tabular.NewSchema(dataColumns...),
		dataIdx:          dataIdx,
	}
	if s, ok := opts["records_per_file"]; ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, tqe.E(tqe.Invalid, "records_per_file: not a positive integer: %q", s)
		}
		job.MaxRecordsPerFile = n
		delete(opts, "records_per_file")
	}
	if s, ok := opts["target_file_size"]; ok {
		n, err := units.ParseStrictBytes(s)
		if err != nil {
			return nil, tqe.E(tqe.Invalid, "target_file_size: %s", err)
		}
		job.TargetFileSize = n
		delete(opts, "target_file_size")
	}
	if s, ok := opts["timezone"]; ok {
		loc, err := time.LoadLocation(s)
		if err != nil {
			return nil, tqe.E(tqe.Invalid, "timezone: %s", err)
		}
		job.Timezone = loc
		delete(opts, "timezone")
	}
	// Remaining options belong to the format.  Prepare runs exactly
	// once per job, before any task writer exists, so shared
	// configuration it declares (such as a compression codec) binds
	// every task the same way.
	if err := f.Prepare(job.dataSchema, opts); err != nil {
		return nil, err
	}
	return job, nil
}

// DataSchema is the on-disk schema: the output schema minus the
// partition columns, in output order.
func (j *Job) DataSchema() *tabular.Schema {
	return j.dataSchema
}

// DataIndexes maps each data-schema position to its position in the
// full output schema.
func (j *Job) DataIndexes() []int {
	return j.dataIdx
}

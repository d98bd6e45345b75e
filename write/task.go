package write

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/commit"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/tqe"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TaskWriter consumes one task's records and stages them as rotated
// output files through the commit protocol.  One writer per task, no
// internal parallelism.
type TaskWriter struct {
	ctx       context.Context
	job       *Job
	committer commit.Protocol
	taskID    string
	logger    *zap.Logger
	trackers  []Tracker

	// files is keyed by bucket id; unbucketed writes use bucket 0.
	files  map[int]*fileWriter
	record tabular.Record
	count  int64
	closed bool
}

type fileWriter struct {
	out     *countingWriter
	writer  format.Writer
	records int64
}

func newTaskWriter(ctx context.Context, job *Job, committer commit.Protocol, taskID string, logger *zap.Logger) *TaskWriter {
	trackers := make([]Tracker, 0, len(job.Trackers))
	for _, f := range job.Trackers {
		trackers = append(trackers, f())
	}
	return &TaskWriter{
		ctx:       ctx,
		job:       job,
		committer: committer,
		taskID:    taskID,
		logger:    logger.With(zap.String("task", taskID)),
		trackers:  trackers,
		files:     map[int]*fileWriter{},
		record: tabular.Record{
			Schema: job.DataSchema(),
			Values: make([]tabular.Value, job.DataSchema().Len()),
		},
	}
}

func (t *TaskWriter) Write(rec *tabular.Record) error {
	if t.closed {
		return tqe.E(tqe.Internal, "write to closed task writer")
	}
	bucket := 0
	if t.job.Bucket != nil {
		bucket = t.job.Bucket(rec)
	}
	fw := t.files[bucket]
	if fw == nil {
		var err error
		if fw, err = t.newFile(bucket); err != nil {
			return err
		}
		t.files[bucket] = fw
	}
	if err := fw.writer.Write(t.dataRecord(rec)); err != nil {
		return err
	}
	fw.records++
	t.count++
	for _, tracker := range t.trackers {
		tracker.Update(rec)
	}
	if t.rotate(fw) {
		delete(t.files, bucket)
		return fw.writer.Close()
	}
	return nil
}

// dataRecord strips partition columns and applies the output
// timezone.  The returned record is reused across calls.
func (t *TaskWriter) dataRecord(rec *tabular.Record) *tabular.Record {
	for i, j := range t.job.DataIndexes() {
		v := rec.Values[j]
		if t.job.Timezone != nil {
			if ts, ok := v.(time.Time); ok {
				v = ts.In(t.job.Timezone)
			}
		}
		t.record.Values[i] = v
	}
	return &t.record
}

func (t *TaskWriter) rotate(fw *fileWriter) bool {
	if t.job.MaxRecordsPerFile > 0 && fw.records >= t.job.MaxRecordsPerFile {
		return true
	}
	return t.job.TargetFileSize > 0 && fw.out.n >= t.job.TargetFileSize
}

func (t *TaskWriter) newFile(bucket int) (*fileWriter, error) {
	name := ksuid.New().String()
	if t.job.Bucket != nil {
		name = fmt.Sprintf("%s_b%05d", name, bucket)
	}
	name += t.job.Format.Extension()
	wc, err := t.committer.NewTaskFile(t.ctx, t.taskID, name)
	if err != nil {
		return nil, err
	}
	out := &countingWriter{w: wc}
	w, err := t.job.Format.NewWriter(out, t.job.DataSchema(), t.job.Options)
	if err != nil {
		wc.Close()
		return nil, err
	}
	t.logger.Debug("Opened output file", zap.String("name", name))
	return &fileWriter{out: out, writer: w}, nil
}

// Close seals every open file and returns the task's commit message.
func (t *TaskWriter) Close() (commit.Message, error) {
	if t.closed {
		return commit.Message{}, tqe.E(tqe.Internal, "task writer closed twice")
	}
	t.closed = true
	var err error
	for _, fw := range t.files {
		err = multierr.Append(err, fw.writer.Close())
	}
	t.files = nil
	if err != nil {
		return commit.Message{}, err
	}
	msg, err := t.committer.CommitTask(t.ctx, t.taskID)
	if err != nil {
		return commit.Message{}, err
	}
	msg.Count = t.count
	return msg, nil
}

// Abort releases the task's staged resources.  Staged files are left
// for the job-level abort to sweep.
func (t *TaskWriter) Abort() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var err error
	for _, fw := range t.files {
		err = multierr.Append(err, fw.writer.Close())
	}
	t.files = nil
	return err
}

type countingWriter struct {
	w io.WriteCloser
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) Close() error {
	return c.w.Close()
}

package write

import (
	"context"
	"sync"

	"github.com/segmentio/ksuid"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/commit"
	"github.com/woainirjy/tabular/format"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/table"
	"github.com/woainirjy/tabular/tqe"
	"go.uber.org/zap"
)

// Builder stages the configuration of one write.  All required
// fields must be present before Build; validation happens before any
// storage I/O.
type Builder struct {
	engine        storage.Engine
	target        *storage.URI
	schema        *tabular.Schema
	partition     *tabular.Schema
	jobID         ksuid.KSUID
	mode          SaveMode
	desc          *table.Descriptor
	opts          map[string]string
	bucket        func(*tabular.Record) int
	locations     map[string]*storage.URI
	trackers      []TrackerFactory
	caseSensitive bool
	logger        *zap.Logger
}

func NewBuilder(engine storage.Engine, target *storage.URI) *Builder {
	return &Builder{
		engine: engine,
		target: target,
		opts:   map[string]string{},
	}
}

func (b *Builder) Schema(s *tabular.Schema) *Builder    { b.schema = s; return b }
func (b *Builder) Partition(s *tabular.Schema) *Builder { b.partition = s; return b }
func (b *Builder) JobID(id ksuid.KSUID) *Builder        { b.jobID = id; return b }
func (b *Builder) Mode(m SaveMode) *Builder             { b.mode = m; return b }
func (b *Builder) Table(d *table.Descriptor) *Builder   { b.desc = d; return b }
func (b *Builder) Option(k, v string) *Builder          { b.opts[k] = v; return b }
func (b *Builder) CaseSensitive(on bool) *Builder       { b.caseSensitive = on; return b }
func (b *Builder) Logger(l *zap.Logger) *Builder        { b.logger = l; return b }

// BucketBy sets an optional bucketing expression; records are routed
// to per-bucket output files within each task.
func (b *Builder) BucketBy(fn func(*tabular.Record) int) *Builder {
	b.bucket = fn
	return b
}

// FileLocation records an explicit output location for one logical
// partition path, for planners that pin partitions to directories.
func (b *Builder) FileLocation(partition string, u *storage.URI) *Builder {
	if b.locations == nil {
		b.locations = map[string]*storage.URI{}
	}
	b.locations[partition] = u
	return b
}

// Track adds a per-task statistics tracker factory.
func (b *Builder) Track(f TrackerFactory) *Builder {
	b.trackers = append(b.trackers, f)
	return b
}

// Build validates the staged configuration, applies the save-mode
// destination policy against live storage state, and returns the
// batch write handle.  SetupJob runs exactly once per successful
// non-noop Build.
func (b *Builder) Build(ctx context.Context) (*Batch, error) {
	if b.schema == nil {
		return nil, tqe.E(tqe.Invalid, "output schema not set")
	}
	if err := b.schema.Validate(b.caseSensitive); err != nil {
		return nil, err
	}
	if b.jobID == ksuid.Nil {
		return nil, tqe.E(tqe.Invalid, "job id not set")
	}
	if b.mode == 0 {
		return nil, tqe.E(tqe.Invalid, "save mode not set")
	}
	if b.desc == nil {
		return nil, tqe.E(tqe.Invalid, "table not set")
	}
	if b.target == nil {
		b.target = b.desc.Location
	}
	if b.target == nil {
		return nil, tqe.E(tqe.Invalid, "write target not set")
	}
	if b.desc.Location != nil && b.desc.Location.String() != b.target.String() {
		return nil, tqe.E(tqe.Invalid, "write resolves to more than one target: %s and %s", b.target, b.desc.Location)
	}
	if !b.desc.Can(table.BatchWrite) {
		return nil, tqe.E(tqe.Unsupported, "table %q does not support batch writes", b.desc.Name)
	}
	f, err := format.Lookup(b.desc.Format)
	if err != nil {
		return nil, err
	}
	for _, c := range b.schema.Columns {
		if !f.TypeSupported(c.Type) {
			return nil, tqe.E(tqe.Unsupported, "column %q has type %s, which format %q cannot store", c.Name, c.Type, f.Name())
		}
	}
	if b.partition != nil {
		for _, c := range b.partition.Columns {
			if b.schema.Lookup(c.Name, b.caseSensitive) < 0 {
				return nil, tqe.E(tqe.Invalid, "partition column %q is not an output column", c.Name)
			}
		}
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exists, err := b.destinationExists(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case b.mode == ErrorIfExists && exists:
		return nil, tqe.E(tqe.Exists, "destination %s already exists", b.target)
	case b.mode == Ignore && exists:
		logger.Info("Destination exists; write is a no-op", zap.Stringer("target", b.target))
		return &Batch{noop: true}, nil
	}
	committer := newCommitter(b.engine, b.target, b.jobID, logger)
	if b.mode == Overwrite {
		if _, err := committer.DeleteWithJob(ctx, b.target, true); err != nil {
			return nil, err
		}
	}
	if err := committer.SetupJob(ctx); err != nil {
		// Overwrite may already have trashed the destination's files;
		// the abort rolls them back.
		if abortErr := committer.AbortJob(ctx); abortErr != nil {
			logger.Warn("Abort after failed job setup", zap.Error(abortErr))
		}
		return nil, err
	}
	return &Batch{
		builder:   b,
		format:    f,
		committer: committer,
		logger:    logger,
	}, nil
}

var newCommitter = func(engine storage.Engine, target *storage.URI, jobID ksuid.KSUID, logger *zap.Logger) commit.Protocol {
	return commit.NewFileCommitter(engine, target, jobID, logger)
}

func (b *Builder) destinationExists(ctx context.Context) (bool, error) {
	infos, err := b.engine.List(ctx, b.target)
	if err != nil {
		if tqe.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(infos) > 0, nil
}

// Batch is the write handle returned by a successful Build.  Its job
// description is built on demand, once, so the format Prepare hook
// runs before the first task writer is created.
type Batch struct {
	noop      bool
	builder   *Builder
	format    format.Format
	committer commit.Protocol
	logger    *zap.Logger

	once   sync.Once
	job    *Job
	jobErr error
}

// NoOp reports whether the write was reduced to nothing by the
// Ignore save mode.  A no-op batch is a success with zero rows.
func (b *Batch) NoOp() bool {
	return b.noop
}

func (b *Batch) Job() (*Job, error) {
	if b.noop {
		return nil, tqe.E(tqe.Invalid, "no-op write has no job")
	}
	b.once.Do(func() {
		b.job, b.jobErr = newJob(b.builder, b.format)
	})
	return b.job, b.jobErr
}

func (b *Batch) NewTaskWriter(ctx context.Context, taskID string) (*TaskWriter, error) {
	if b.noop {
		return nil, tqe.E(tqe.Invalid, "no-op write has no tasks")
	}
	job, err := b.Job()
	if err != nil {
		return nil, err
	}
	return newTaskWriter(ctx, job, b.committer, taskID, b.logger), nil
}

// Commit atomically publishes the output of every committed task.
func (b *Batch) Commit(ctx context.Context, messages []commit.Message) error {
	if b.noop {
		return nil
	}
	if err := b.committer.CommitJob(ctx, messages); err != nil {
		if abortErr := b.committer.AbortJob(ctx); abortErr != nil {
			b.logger.Warn("Abort after failed commit", zap.Error(abortErr))
		}
		return err
	}
	return nil
}

// Abort discards all staged output.
func (b *Batch) Abort(ctx context.Context) error {
	if b.noop {
		return nil
	}
	return b.committer.AbortJob(ctx)
}

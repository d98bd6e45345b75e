package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/format"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize is the row count of one columnar batch.
	DefaultBatchSize = 1024
	// DefaultBatchWidth caps how many read-schema columns the
	// columnar path will handle before falling back to rows.
	DefaultBatchWidth = 100
)

// Options configures a partitioned scan.  The zero value reads every
// split strictly, case-insensitively, on the row-oriented path.
type Options struct {
	Format format.Format

	// CaseSensitive selects exact column-name resolution.  The
	// default folds case, matching the planner's write-side policy.
	CaseSensitive bool

	// IgnoreMissingFiles skips splits whose file has disappeared
	// between planning and reading instead of failing the scan.
	IgnoreMissingFiles bool

	// IgnoreCorruptFiles skips the remainder of a split on a decode
	// error instead of failing the scan.  Records already yielded
	// from the split stay yielded.
	IgnoreCorruptFiles bool

	// Vectorized and WholeStage gate the columnar batch path.  Both
	// must be set; the row path is always correct and is the
	// fallback whenever the batch path declines a schema.
	Vectorized bool
	WholeStage bool

	// BatchWidth and BatchSize shape columnar batches.  Zero means
	// the defaults above.
	BatchWidth int
	BatchSize  int

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o Options) batchWidth() int {
	if o.BatchWidth <= 0 {
		return DefaultBatchWidth
	}
	return o.BatchWidth
}

// UseColumnar reports whether a scan of readSchema runs on the
// columnar batch path.  The decision is made once per scan from
// static information only: the gates, the schema width, and the
// requirement that every read column be primitive.
func (o Options) UseColumnar(readSchema *tabular.Schema) bool {
	if !o.Vectorized || !o.WholeStage {
		return false
	}
	if readSchema.Len() > o.batchWidth() {
		return false
	}
	for _, c := range readSchema.Columns {
		if !c.Type.Primitive() {
			return false
		}
	}
	return true
}

type metrics struct {
	skippedMissing prometheus.Counter
	skippedCorrupt prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &metrics{
		skippedMissing: registerCounter(reg, prometheus.CounterOpts{
			Name: "table_scan_skipped_missing_files_total",
			Help: "Number of splits skipped because the underlying file was missing.",
		}),
		skippedCorrupt: registerCounter(reg, prometheus.CounterOpts{
			Name: "table_scan_skipped_corrupt_files_total",
			Help: "Number of splits abandoned because of a decode error.",
		}),
	}
}

// registerCounter reuses the registry's existing collector when the
// counter was registered by an earlier reader, so any number of
// readers can share one Registerer.
func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}

package write

import (
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/paulbellamy/ratecounter"
	"github.com/woainirjy/tabular"
)

// Tracker observes every record a task writes.  Trackers are carried
// by the job description; each task owns its instances, so Update
// needs no locking.
type Tracker interface {
	Update(rec *tabular.Record)
}

// A TrackerFactory creates fresh tracker state for one task.
type TrackerFactory func() Tracker

// RateTracker measures the records-per-second write rate.
type RateTracker struct {
	counter *ratecounter.RateCounter
}

func NewRateTracker() *RateTracker {
	return &RateTracker{counter: ratecounter.NewRateCounter(time.Second)}
}

func (t *RateTracker) Update(*tabular.Record) {
	t.counter.Incr(1)
}

// Rate returns records written in the trailing second.
func (t *RateTracker) Rate() int64 {
	return t.counter.Rate()
}

// FieldSketcher estimates the distinct-value count of every column
// with a per-column hyperloglog sketch.
type FieldSketcher struct {
	schema   *tabular.Schema
	sketches []*hyperloglog.Sketch
}

func NewFieldSketcher(schema *tabular.Schema) *FieldSketcher {
	sketches := make([]*hyperloglog.Sketch, schema.Len())
	for i := range sketches {
		sketches[i] = hyperloglog.New()
	}
	return &FieldSketcher{schema: schema, sketches: sketches}
}

func (f *FieldSketcher) Update(rec *tabular.Record) {
	for i, v := range rec.Values {
		if i >= len(f.sketches) {
			break
		}
		if v != nil {
			f.sketches[i].Insert([]byte(tabular.FormatValue(v)))
		}
	}
}

// Distinct returns the estimated distinct non-null count for a
// column, or zero for an unknown column.
func (f *FieldSketcher) Distinct(name string) uint64 {
	if i := f.schema.Lookup(name, false); i >= 0 {
		return f.sketches[i].Estimate()
	}
	return 0
}

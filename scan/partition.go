package scan

import (
	"context"

	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/pkg/storage"
	"github.com/woainirjy/tabular/tabio"
	"github.com/woainirjy/tabular/tqe"
	"go.uber.org/zap"
)

// PartitionReader reads an ordered list of splits as one record
// stream.  Splits are opened lazily, one at a time, and each
// exhausted or failed decoder is closed before the next split is
// touched.  Depending on Options, splits whose file has gone missing
// or whose bytes won't decode are skipped with a warning instead of
// failing the scan.
type PartitionReader struct {
	ctx             context.Context
	engine          storage.Engine
	splits          []Split
	dataSchema      *tabular.Schema
	partitionSchema *tabular.Schema
	readSchema      *tabular.Schema
	opts            Options
	logger          *zap.Logger
	metrics         *metrics

	cur      tabio.ReadCloser
	curSplit Split
	closed   bool
}

var _ tabio.ReadCloser = (*PartitionReader)(nil)

func NewPartitionReader(ctx context.Context, engine storage.Engine, splits []Split, dataSchema, partitionSchema, readSchema *tabular.Schema, opts Options) *PartitionReader {
	return &PartitionReader{
		ctx:             ctx,
		engine:          engine,
		splits:          splits,
		dataSchema:      dataSchema,
		partitionSchema: partitionSchema,
		readSchema:      readSchema,
		opts:            opts,
		logger:          opts.logger(),
		metrics:         newMetrics(opts.Registerer),
	}
}

func (p *PartitionReader) Read() (*tabular.Record, error) {
	for !p.closed {
		if err := p.ctx.Err(); err != nil {
			return nil, err
		}
		if p.cur == nil {
			if len(p.splits) == 0 {
				return nil, nil
			}
			split := p.splits[0]
			p.splits = p.splits[1:]
			r, err := p.open(split)
			if err != nil {
				return nil, err
			}
			if r == nil {
				// Split skipped; a skip never ends the stream.
				continue
			}
			p.cur = r
		}
		rec, err := p.cur.Read()
		if err != nil {
			split := p.curSplit
			p.closeCurrent()
			// Same classification as open: a file that vanishes
			// mid-read is a missing file, not a corrupt one.
			switch {
			case tqe.IsInvalid(err):
				return nil, err
			case tqe.IsNotFound(err):
				if !p.opts.IgnoreMissingFiles {
					return nil, err
				}
				p.skipMissing(split, err)
				continue
			case p.opts.IgnoreCorruptFiles:
				p.skipCorrupt(split, err)
				continue
			default:
				return nil, err
			}
		}
		if rec == nil {
			p.closeCurrent()
			continue
		}
		return rec, nil
	}
	return nil, nil
}

// open returns the next split's reader, or (nil, nil) when the split
// is skipped under the open policy.  Missing-file classification wins
// over corrupt-file: a vanished file is only skippable under
// IgnoreMissingFiles, whatever IgnoreCorruptFiles says.
func (p *PartitionReader) open(split Split) (tabio.ReadCloser, error) {
	r, err := NewSplitReader(p.ctx, p.engine, split, p.dataSchema, p.partitionSchema, p.readSchema, p.opts)
	if err == nil {
		p.curSplit = split
		return r, nil
	}
	switch {
	case tqe.IsInvalid(err):
		// Scan misconfiguration fails every split the same way.
		return nil, err
	case tqe.IsNotFound(err):
		if !p.opts.IgnoreMissingFiles {
			return nil, err
		}
		p.skipMissing(split, err)
		return nil, nil
	default:
		if !p.opts.IgnoreCorruptFiles {
			return nil, err
		}
		p.skipCorrupt(split, err)
		return nil, nil
	}
}

func (p *PartitionReader) skipMissing(split Split, err error) {
	p.logger.Warn("Skipped missing file", zap.Stringer("uri", split.URI), zap.Error(err))
	p.metrics.skippedMissing.Inc()
}

func (p *PartitionReader) skipCorrupt(split Split, err error) {
	p.logger.Warn("Skipped remainder of corrupt file", zap.Stringer("uri", split.URI), zap.Error(err))
	p.metrics.skippedCorrupt.Inc()
}

func (p *PartitionReader) closeCurrent() {
	if p.cur != nil {
		p.cur.Close()
		p.cur = nil
	}
}

// Close is idempotent and safe to call before any split was opened.
func (p *PartitionReader) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var err error
	if p.cur != nil {
		err = p.cur.Close()
		p.cur = nil
	}
	return err
}

// Package cache provides a read-through cache for immutable table
// files.  Committed data files are never rewritten in place, so
// whole-object caching is sound.
package cache

import (
	"context"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/woainirjy/tabular/pkg/storage"
)

// Cacheable decides whether a URI's object may be cached.
type Cacheable func(*storage.URI) bool

type Engine struct {
	engine    storage.Engine
	cacheable Cacheable
	lru       *lru.Cache[string, []byte]
	hits      prometheus.Counter
	misses    prometheus.Counter
}

var _ storage.Engine = (*Engine)(nil)

// New wraps engine with an LRU of up to size recently read objects.
// A nil cacheable caches everything.
func New(engine storage.Engine, size int, cacheable Cacheable, registerer prometheus.Registerer) (*Engine, error) {
	inner, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	if cacheable == nil {
		cacheable = func(*storage.URI) bool { return true }
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &Engine{
		engine:    engine,
		cacheable: cacheable,
		lru:       inner,
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "table_cache_hits_total",
			Help: "Number of hits for a cache lookup.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "table_cache_misses_total",
			Help: "Number of misses for a cache lookup.",
		}),
	}, nil
}

func (e *Engine) Get(ctx context.Context, u *storage.URI) (storage.Reader, error) {
	if !e.cacheable(u) {
		return e.engine.Get(ctx, u)
	}
	if b, ok := e.lru.Get(u.String()); ok {
		e.hits.Inc()
		return storage.NewBytesReader(b), nil
	}
	b, err := storage.Get(ctx, e.engine, u)
	if err != nil {
		return nil, err
	}
	e.lru.Add(u.String(), b)
	e.misses.Inc()
	return storage.NewBytesReader(b), nil
}

func (e *Engine) Put(ctx context.Context, u *storage.URI) (io.WriteCloser, error) {
	return e.engine.Put(ctx, u)
}

func (e *Engine) Delete(ctx context.Context, u *storage.URI) error {
	e.lru.Remove(u.String())
	return e.engine.Delete(ctx, u)
}

func (e *Engine) DeleteByPrefix(ctx context.Context, u *storage.URI) error {
	e.lru.Purge()
	return e.engine.DeleteByPrefix(ctx, u)
}

func (e *Engine) Rename(ctx context.Context, src, dst *storage.URI) error {
	e.lru.Remove(src.String())
	return e.engine.Rename(ctx, src, dst)
}

func (e *Engine) Exists(ctx context.Context, u *storage.URI) (bool, error) {
	if _, ok := e.lru.Get(u.String()); ok {
		e.hits.Inc()
		return true, nil
	}
	return e.engine.Exists(ctx, u)
}

func (e *Engine) Size(ctx context.Context, u *storage.URI) (int64, error) {
	if b, ok := e.lru.Get(u.String()); ok {
		return int64(len(b)), nil
	}
	return e.engine.Size(ctx, u)
}

func (e *Engine) List(ctx context.Context, u *storage.URI) ([]storage.Info, error) {
	return e.engine.List(ctx, u)
}

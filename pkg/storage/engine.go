package storage

import (
	"context"
	"errors"
	"io"

	"github.com/woainirjy/tabular/tqe"
)

type Reader interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

type Sizer interface {
	Size() (int64, error)
}

var ErrNotSupported = errors.New("method call on storage engine not supported")

// Engine abstracts the object store holding table files.  Rename is
// used by the commit protocol to promote staged task output; backends
// without an atomic rename return ErrNotSupported and the committer
// falls back to copy and delete.
type Engine interface {
	Get(context.Context, *URI) (Reader, error)
	Put(context.Context, *URI) (io.WriteCloser, error)
	Delete(context.Context, *URI) error
	DeleteByPrefix(context.Context, *URI) error
	Rename(context.Context, *URI, *URI) error
	Exists(context.Context, *URI) (bool, error)
	Size(context.Context, *URI) (int64, error)
	List(context.Context, *URI) ([]Info, error)
}

type Info struct {
	Name string
	Size int64
}

func NewRemoteEngine() *Router {
	router := NewRouter()
	router.Enable(S3Scheme)
	return router
}

func NewLocalEngine() *Router {
	router := NewRemoteEngine()
	router.Enable(FileScheme)
	return router
}

func Put(ctx context.Context, engine Engine, u *URI, r io.Reader) error {
	w, err := engine.Put(ctx, u)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}

func Get(ctx context.Context, engine Engine, u *URI) ([]byte, error) {
	r, err := engine.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Move renames src to dst, copying the bytes when the engine has no
// native rename.
func Move(ctx context.Context, engine Engine, src, dst *URI) error {
	err := engine.Rename(ctx, src, dst)
	if !errors.Is(err, ErrNotSupported) {
		return err
	}
	r, err := engine.Get(ctx, src)
	if err != nil {
		return err
	}
	err = Put(ctx, engine, dst, r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return engine.Delete(ctx, src)
}

func Size(r Reader) (int64, error) {
	if sizer, ok := r.(Sizer); ok {
		return sizer.Size()
	}
	return 0, ErrNotSupported
}

// NewSeeker provides a seeker implementation on top of Reader for
// libraries like parquet-go that require an io.ReadSeeker.
func NewSeeker(r Reader) (*Seeker, error) {
	size, err := Size(r)
	if err != nil {
		return nil, err
	}
	return &Seeker{
		ReadSeeker: io.NewSectionReader(r, 0, size),
		Reader:     r,
	}, nil
}

// NewRangeSeeker is like NewSeeker but restricts the view to the byte
// range [off, off+length).
func NewRangeSeeker(r Reader, off, length int64) *Seeker {
	return &Seeker{
		ReadSeeker: io.NewSectionReader(r, off, length),
		Reader:     r,
	}
}

type Seeker struct {
	io.ReadSeeker
	Reader
}

// Read resolves the ambiguous selector s.Read to s.ReadSeeker.Read.
func (s *Seeker) Read(b []byte) (int, error) {
	return s.ReadSeeker.Read(b)
}

// Router dispatches engine calls by URI scheme.
type Router struct {
	engines map[Scheme]Engine
}

var _ Engine = (*Router)(nil)

func NewRouter() *Router {
	return &Router{engines: make(map[Scheme]Engine)}
}

func (r *Router) Enable(scheme Scheme) {
	switch scheme {
	case FileScheme:
		r.engines[scheme] = NewFileSystem()
	case S3Scheme:
		r.engines[scheme] = NewS3()
	default:
		panic("unsupported scheme: " + scheme)
	}
}

func (r *Router) lookup(u *URI) (Engine, error) {
	if engine, ok := r.engines[u.SchemeOf()]; ok {
		return engine, nil
	}
	return nil, tqe.E(tqe.Unsupported, "storage scheme %q not enabled", u.Scheme)
}

func (r *Router) Get(ctx context.Context, u *URI) (Reader, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.Get(ctx, u)
}

func (r *Router) Put(ctx context.Context, u *URI) (io.WriteCloser, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.Put(ctx, u)
}

func (r *Router) Delete(ctx context.Context, u *URI) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	return engine.Delete(ctx, u)
}

func (r *Router) DeleteByPrefix(ctx context.Context, u *URI) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	return engine.DeleteByPrefix(ctx, u)
}

func (r *Router) Rename(ctx context.Context, src, dst *URI) error {
	engine, err := r.lookup(src)
	if err != nil {
		return err
	}
	return engine.Rename(ctx, src, dst)
}

func (r *Router) Exists(ctx context.Context, u *URI) (bool, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return false, err
	}
	return engine.Exists(ctx, u)
}

func (r *Router) Size(ctx context.Context, u *URI) (int64, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return 0, err
	}
	return engine.Size(ctx, u)
}

func (r *Router) List(ctx context.Context, u *URI) ([]Info, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.List(ctx, u)
}

// Package tabio provides the record stream interfaces connecting
// file decoders, partition readers, and write tasks.
package tabio

import (
	"context"
	"io"

	"github.com/woainirjy/tabular"
	"golang.org/x/exp/slices"
)

// Reader wraps the Read method.
//
// Read returns the next record and a nil error, a nil record and the
// next error, or a nil record and nil error to indicate that no
// records remain.
//
// Read never returns a non-nil record and non-nil error together, and
// it never returns io.EOF.
type Reader interface {
	Read() (*tabular.Record, error)
}

type Writer interface {
	Write(*tabular.Record) error
}

type ReadCloser interface {
	Reader
	io.Closer
}

type WriteCloser interface {
	Writer
	io.Closer
}

func NewReadCloser(r Reader, c io.Closer) ReadCloser {
	return extReadCloser{r, c}
}

type extReadCloser struct {
	Reader
	io.Closer
}

func NopReadCloser(r Reader) ReadCloser {
	return nopReadCloser{r}
}

type nopReadCloser struct {
	Reader
}

func (nopReadCloser) Close() error { return nil }

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NopCloser returns a WriteCloser with a no-op Close method wrapping
// the provided Writer w.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

// ConcatReader returns a Reader that is the logical concatenation of
// readers, which are read sequentially.  Its Read method returns any
// non-nil error returned by a reader and returns end of stream after
// all readers have returned end of stream.
func ConcatReader(readers ...Reader) Reader {
	if len(readers) == 1 {
		return readers[0]
	}
	return &concatReader{slices.Clone(readers)}
}

type concatReader struct {
	readers []Reader
}

func (c *concatReader) Read() (*tabular.Record, error) {
	for len(c.readers) > 0 {
		rec, err := c.readers[0].Read()
		if rec != nil || err != nil {
			return rec, err
		}
		c.readers = c.readers[1:]
	}
	return nil, nil
}

// Copy copies src to dst a la io.Copy.
func Copy(dst Writer, src Reader) error {
	return CopyWithContext(context.Background(), dst, src)
}

func CopyWithContext(ctx context.Context, dst Writer, src Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Read()
		if err != nil || rec == nil {
			return err
		}
		if err := dst.Write(rec); err != nil {
			return err
		}
	}
}

// ReadAll drains r, copying each record so the result remains valid
// after further reads.
func ReadAll(r Reader) ([]*tabular.Record, error) {
	var recs []*tabular.Record
	for {
		rec, err := r.Read()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return recs, nil
		}
		recs = append(recs, rec.Copy())
	}
}

func CloseReaders(readers []Reader) error {
	var err error
	for _, reader := range readers {
		if closer, ok := reader.(io.Closer); ok {
			if e := closer.Close(); err == nil {
				err = e
			}
		}
	}
	return err
}

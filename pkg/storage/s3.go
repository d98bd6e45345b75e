package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/woainirjy/tabular/tqe"
)

type S3Engine struct {
	client s3iface.S3API
}

var _ Engine = (*S3Engine)(nil)

func NewS3() *S3Engine {
	return &S3Engine{client: newS3Client(nil)}
}

func NewS3WithClient(client s3iface.S3API) *S3Engine {
	return &S3Engine{client: client}
}

func newS3Client(cfg *aws.Config) *s3.S3 {
	if cfg == nil {
		cfg = &aws.Config{}
	}
	cfg.S3ForcePathStyle = aws.Bool(true)
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	}))
	return s3.New(sess)
}

func s3Path(u *URI) (bucket, key string) {
	return u.Host, strings.TrimPrefix(u.Path, "/")
}

func (s *S3Engine) Get(ctx context.Context, u *URI) (Reader, error) {
	size, err := s.Size(ctx, u)
	if err != nil {
		return nil, err
	}
	bucket, key := s3Path(u)
	return &s3Reader{
		ctx:    ctx,
		client: s.client,
		bucket: bucket,
		key:    key,
		size:   size,
	}, nil
}

func (s *S3Engine) Put(ctx context.Context, u *URI) (io.WriteCloser, error) {
	bucket, key := s3Path(u)
	return &s3Writer{
		ctx:      ctx,
		uploader: s3manager.NewUploaderWithClient(s.client),
		bucket:   bucket,
		key:      key,
		done:     make(chan struct{}),
	}, nil
}

func (s *S3Engine) Delete(ctx context.Context, u *URI) error {
	bucket, key := s3Path(u)
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return wrapS3Err(err)
}

func (s *S3Engine) DeleteByPrefix(ctx context.Context, u *URI) error {
	bucket, prefix := s3Path(u)
	return s.list(ctx, bucket, prefix, func(obj *s3.Object) error {
		_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		return wrapS3Err(err)
	})
}

// Rename is implemented as a server-side copy followed by a delete;
// it is not atomic across the pair.
func (s *S3Engine) Rename(ctx context.Context, src, dst *URI) error {
	srcBucket, srcKey := s3Path(src)
	dstBucket, dstKey := s3Path(dst)
	_, err := s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return wrapS3Err(err)
	}
	return s.Delete(ctx, src)
}

func (s *S3Engine) Size(ctx context.Context, u *URI) (int64, error) {
	bucket, key := s3Path(u)
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, wrapS3Err(err)
	}
	return *out.ContentLength, nil
}

func (s *S3Engine) Exists(ctx context.Context, u *URI) (bool, error) {
	_, err := s.Size(ctx, u)
	if tqe.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Engine) List(ctx context.Context, u *URI) ([]Info, error) {
	bucket, prefix := s3Path(u)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var infos []Info
	err := s.list(ctx, bucket, prefix, func(obj *s3.Object) error {
		infos = append(infos, Info{
			Name: strings.TrimPrefix(*obj.Key, prefix),
			Size: *obj.Size,
		})
		return nil
	})
	return infos, err
}

func (s *S3Engine) list(ctx context.Context, bucket, prefix string, each func(*s3.Object) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	for {
		out, err := s.client.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return wrapS3Err(err)
		}
		for _, obj := range out.Contents {
			if err := each(obj); err != nil {
				return err
			}
		}
		if out.NextContinuationToken == nil {
			return nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}

func wrapS3Err(err error) error {
	var reqerr awserr.RequestFailure
	if errors.As(err, &reqerr) && reqerr.StatusCode() == http.StatusNotFound {
		return tqe.ErrNotFound()
	}
	return err
}

// s3Reader reads an object with ranged GETs so that io.ReaderAt works
// without downloading the whole object.
type s3Reader struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string
	size   int64
	offset int64
}

var _ Sizer = (*s3Reader)(nil)

func (r *s3Reader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	n, err := r.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}

func (r *s3Reader) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}
	out, err := r.client.GetObjectWithContext(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, wrapS3Err(err)
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err == nil && off+int64(n) >= r.size && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (r *s3Reader) Size() (int64, error) {
	return r.size, nil
}

func (r *s3Reader) Close() error {
	return nil
}

// s3Writer streams bytes to an s3manager upload through a pipe.
type s3Writer struct {
	ctx      context.Context
	uploader *s3manager.Uploader
	bucket   string
	key      string
	writer   *io.PipeWriter
	once     sync.Once
	done     chan struct{}
	err      error
}

func (w *s3Writer) init() {
	pr, pw := io.Pipe()
	w.writer = pw
	go func() {
		_, err := w.uploader.UploadWithContext(w.ctx, &s3manager.UploadInput{
			Bucket: aws.String(w.bucket),
			Key:    aws.String(w.key),
			Body:   pr,
		})
		w.err = err
		close(w.done)
		pr.CloseWithError(err)
	}()
}

func (w *s3Writer) Write(b []byte) (int, error) {
	w.once.Do(w.init)
	return w.writer.Write(b)
}

func (w *s3Writer) Close() error {
	w.once.Do(w.init)
	err := w.writer.Close()
	<-w.done
	if err != nil {
		return err
	}
	return w.err
}

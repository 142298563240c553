package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobSink publishes assets to a gocloud.dev bucket. Objects become visible
// only when a writer closes successfully; aborted uploads cancel the writer's
// context so nothing is published. Resume is not supported.
type BlobSink struct {
	bucket *blob.Bucket
	prefix string
}

// NewBlobSink wraps an open bucket. prefix is prepended to every location.
func NewBlobSink(bucket *blob.Bucket, prefix string) *BlobSink {
	return &BlobSink{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// OpenBlobSink opens a bucket URL such as s3://bucket?region=us-east-1 or
// file:///srv/media. The caller must Close the sink.
func OpenBlobSink(ctx context.Context, bucketURL string) (*BlobSink, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewBlobSink(bucket, ""), nil
}

// Close releases the bucket.
func (s *BlobSink) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func (s *BlobSink) key(location string) string {
	if s.prefix == "" {
		return location
	}
	return path.Join(s.prefix, location)
}

func (s *BlobSink) Stat(ctx context.Context, location string) (int64, bool, error) {
	attrs, err := s.bucket.Attributes(ctx, s.key(location))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return attrs.Size, true, nil
}

func (s *BlobSink) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return s.bucket.NewReader(ctx, s.key(location), nil)
}

func (s *BlobSink) Begin(ctx context.Context, location string, _ bool) (Upload, error) {
	upload := &blobUpload{bucket: s.bucket, key: s.key(location), parent: ctx}
	if err := upload.open(); err != nil {
		return nil, err
	}
	return upload, nil
}

type blobUpload struct {
	bucket *blob.Bucket
	key    string
	parent context.Context
	cancel context.CancelFunc
	writer *blob.Writer
	closed bool
}

func (u *blobUpload) open() error {
	ctx, cancel := context.WithCancel(u.parent)
	writer, err := u.bucket.NewWriter(ctx, u.key, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("create writer for %s: %w", u.key, err)
	}
	u.writer = writer
	u.cancel = cancel
	return nil
}

func (u *blobUpload) Write(p []byte) (int, error) {
	return u.writer.Write(p)
}

func (u *blobUpload) Offset() int64 { return 0 }

func (u *blobUpload) ReplayTo(io.Writer) error { return nil }

func (u *blobUpload) Truncate() error {
	u.discard()
	return u.open()
}

func (u *blobUpload) Commit() error {
	if u.closed {
		return errors.New("upload already closed")
	}
	u.closed = true
	defer u.cancel()
	if err := u.writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", u.key, err)
	}
	return nil
}

func (u *blobUpload) Abort(bool) error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.discard()
	return nil
}

func (u *blobUpload) discard() {
	u.cancel()
	_ = u.writer.Close()
}

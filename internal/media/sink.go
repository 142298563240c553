package media

import (
	"context"
	"io"
)

// Sink stores published assets. Locations are slash-separated and relative to
// the sink root.
type Sink interface {
	// Stat reports the size of a published object and whether it exists.
	Stat(ctx context.Context, location string) (size int64, exists bool, err error)
	// Open reads a published object.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// Begin starts a staged upload. With resume set, previously staged bytes
	// are kept when the sink supports it.
	Begin(ctx context.Context, location string, resume bool) (Upload, error)
}

// Upload is a staged object that becomes visible only on Commit.
type Upload interface {
	io.Writer
	// Offset is the number of bytes already staged from an earlier attempt.
	Offset() int64
	// ReplayTo copies the already-staged bytes to w so they can be hashed.
	ReplayTo(w io.Writer) error
	// Truncate discards staged bytes and restarts at offset zero.
	Truncate() error
	// Commit publishes the staged bytes at the final location.
	Commit() error
	// Abort discards the upload. keepPartial leaves resumable bytes behind
	// where the sink supports it; the final location is never touched.
	Abort(keepPartial bool) error
}

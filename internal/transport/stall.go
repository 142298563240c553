package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStalled reports a transfer that stopped making progress.
var ErrStalled = errors.New("transfer stalled")

// stallGuard cancels an attempt when neither the response headers nor any
// body bytes arrive within timeout. Every byte read rearms the timer.
type stallGuard struct {
	next    http.RoundTripper
	timeout time.Duration
}

func (s stallGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancelCause(req.Context())
	timer := time.AfterFunc(s.timeout, func() { cancel(ErrStalled) })

	resp, err := s.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		timer.Stop()
		err = s.cause(ctx, err)
		cancel(nil)
		return nil, err
	}
	resp.Body = &stallBody{ReadCloser: resp.Body, ctx: ctx, guard: s, timer: timer, cancel: cancel}
	return resp, nil
}

// cause replaces the cancellation error with ErrStalled when the guard fired,
// so callers do not mistake a stall for their own cancellation.
func (s stallGuard) cause(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("%w: no data for %s", ErrStalled, s.timeout)
	}
	return err
}

type stallBody struct {
	io.ReadCloser
	ctx    context.Context
	guard  stallGuard
	timer  *time.Timer
	cancel context.CancelCauseFunc
}

func (b *stallBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.timer.Reset(b.guard.timeout)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		err = b.guard.cause(b.ctx, err)
	}
	return n, err
}

func (b *stallBody) Close() error {
	b.timer.Stop()
	err := b.ReadCloser.Close()
	b.cancel(nil)
	return err
}

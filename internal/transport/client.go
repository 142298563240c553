package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"rommedia/internal/logging"
)

// Options configure the client.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// DisableRetry sends every request exactly once. Callers that meter
	// requests themselves need this so each resend passes their gate again.
	DisableRetry bool
	// StallTimeout aborts an attempt when no response or body bytes arrive
	// for this long. Zero disables it.
	StallTimeout time.Duration
	UserAgent    string
	Logger       *slog.Logger
	// Transport overrides the underlying round tripper; tests use it.
	Transport http.RoundTripper
}

const (
	defaultRetryMax     = 2
	defaultRetryWaitMin = 250 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
)

// New returns an *http.Client that retries dial and connection-reset errors
// unless DisableRetry is set.
func New(opts Options) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	switch {
	case opts.DisableRetry:
		rc.RetryMax = 0
	case rc.RetryMax <= 0:
		rc.RetryMax = defaultRetryMax
	}
	rc.RetryWaitMin = opts.RetryWaitMin
	if rc.RetryWaitMin <= 0 {
		rc.RetryWaitMin = defaultRetryWaitMin
	}
	rc.RetryWaitMax = opts.RetryWaitMax
	if rc.RetryWaitMax <= 0 {
		rc.RetryWaitMax = defaultRetryWaitMax
	}
	rc.CheckRetry = CheckConnectionError
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveled{logger: logging.NewComponentLogger(opts.Logger, "transport")}
	if opts.Transport != nil {
		rc.HTTPClient.Transport = opts.Transport
	}
	if opts.StallTimeout > 0 {
		rc.HTTPClient.Transport = stallGuard{next: rc.HTTPClient.Transport, timeout: opts.StallTimeout}
	}

	client := rc.StandardClient()
	client.Timeout = opts.Timeout
	if opts.UserAgent != "" {
		client.Transport = userAgent{next: client.Transport, value: opts.UserAgent}
	}
	return client
}

// CheckConnectionError retries only when no response arrived and the request
// context is still live.
func CheckConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err == nil {
		return false, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, err
	}
	return resp == nil, nil
}

type userAgent struct {
	next  http.RoundTripper
	value string
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.value)
	}
	return u.next.RoundTrip(req)
}

// leveled adapts slog to retryablehttp.LeveledLogger. Request chatter is
// demoted to debug.
type leveled struct {
	logger *slog.Logger
}

func (l leveled) Error(msg string, kv ...any) { l.logger.Warn(msg, kv...) }
func (l leveled) Info(msg string, kv ...any)  { l.logger.Debug(msg, kv...) }
func (l leveled) Debug(msg string, kv ...any) { l.logger.Debug(msg, kv...) }
func (l leveled) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kv...) }

package media

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rommedia/internal/logging"
	"rommedia/internal/services"
)

// HTTPDoer is the transport used for downloads.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Result describes a finished Fetch.
type Result struct {
	Location string
	Size     int64
	// Satisfied is set when an existing object already matched and no
	// request was sent.
	Satisfied bool
	// Resumed is set when the transfer continued from staged bytes.
	Resumed   bool
	Checksums Checksums
}

// Downloader streams assets into a Sink and publishes them atomically.
type Downloader struct {
	client HTTPDoer
	sink   Sink
	resume bool
	logger *slog.Logger
	// paths serializes transfers that target the same location.
	paths *services.KeyedMutex
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithResume keeps partially staged bytes between attempts and continues
// them with an HTTP Range request.
func WithResume(enabled bool) Option {
	return func(d *Downloader) { d.resume = enabled }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDownloader returns a Downloader writing to sink.
func NewDownloader(client HTTPDoer, sink Sink, opts ...Option) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	d := &Downloader{client: client, sink: sink, logger: logging.NewNop(), paths: services.NewKeyedMutex()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "media")
	return d
}

// Fetch makes ref.Location hold the asset at ref.URL. An existing object that
// already verifies is reported Satisfied without a request. The final
// location is written only by a successful, verified transfer, and at most
// one Fetch per location runs at a time.
func (d *Downloader) Fetch(ctx context.Context, ref AssetRef) (Result, error) {
	if strings.TrimSpace(ref.Location) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "media", "fetch", "asset location required", nil)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	unlock := d.paths.Lock(ref.Location)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if result, ok, err := d.existing(ctx, ref); err != nil {
		return Result{}, err
	} else if ok {
		return result, nil
	}
	if strings.TrimSpace(ref.URL) == "" {
		return Result{}, services.Wrap(services.ErrNotFound, "media", "fetch", "asset has no url", nil)
	}

	upload, err := d.sink.Begin(ctx, ref.Location, d.resume)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransientDownload, "media", "stage", ref.Location, err)
	}
	result, keepPartial, err := d.transfer(ctx, ref, upload)
	if err != nil {
		if abortErr := upload.Abort(keepPartial && d.resume); abortErr != nil {
			d.logger.Debug("discard staged asset failed", logging.String("location", ref.Location), logging.Error(abortErr))
		}
		return Result{}, err
	}
	if err := upload.Commit(); err != nil {
		return Result{}, services.Wrap(services.ErrTransientDownload, "media", "publish", ref.Location, err)
	}
	return result, nil
}

// existing checks whether the final object already satisfies ref: matching
// checksum, else matching size, else mere existence when neither is known.
func (d *Downloader) existing(ctx context.Context, ref AssetRef) (Result, bool, error) {
	size, exists, err := d.sink.Stat(ctx, ref.Location)
	if err != nil {
		return Result{}, false, services.Wrap(services.ErrTransientDownload, "media", "stat", ref.Location, err)
	}
	if !exists {
		return Result{}, false, nil
	}
	satisfied := Result{Location: ref.Location, Size: size, Satisfied: true}

	if !ref.Checksums.IsZero() {
		rc, err := d.sink.Open(ctx, ref.Location)
		if err != nil {
			return Result{}, false, services.Wrap(services.ErrTransientDownload, "media", "open existing", ref.Location, err)
		}
		defer rc.Close()
		digests := newDigests()
		if _, err := io.Copy(digests, rc); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, false, ctxErr
			}
			return Result{}, false, services.Wrap(services.ErrTransientDownload, "media", "hash existing", ref.Location, err)
		}
		sums := digests.sums()
		if !ref.Checksums.Matches(sums) {
			d.logger.Info("existing asset fails checksum, downloading again",
				logging.String("location", ref.Location),
				logging.String("kind", string(ref.Kind)),
			)
			return Result{}, false, nil
		}
		satisfied.Checksums = sums
		return satisfied, true, nil
	}
	if ref.Size > 0 && ref.Size != size {
		return Result{}, false, nil
	}
	return satisfied, true, nil
}

// transfer streams the response into upload and verifies it. keepPartial
// reports whether the staged bytes are worth resuming from.
func (d *Downloader) transfer(ctx context.Context, ref AssetRef, upload Upload) (Result, bool, error) {
	offset := upload.Offset()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return Result{}, false, services.Wrap(services.ErrNotFound, "media", "build request", ref.URL, err)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, true, ctxErr
		}
		return Result{}, true, services.Wrap(services.ErrTransientDownload, "media", "request", ref.URL, err)
	}
	defer resp.Body.Close()

	digests := newDigests()
	resumed := false
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		if err := upload.ReplayTo(digests); err != nil {
			return Result{}, false, services.Wrap(services.ErrTransientDownload, "media", "replay staged bytes", ref.Location, err)
		}
		resumed = true
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			if err := upload.Truncate(); err != nil {
				return Result{}, false, services.Wrap(services.ErrTransientDownload, "media", "restart staged file", ref.Location, err)
			}
			offset = 0
		}
	default:
		err := classifyStatus(ref.URL, resp.StatusCode)
		keep := resp.StatusCode != http.StatusRequestedRangeNotSatisfiable && errors.Is(err, services.ErrTransientDownload)
		return Result{}, keep, err
	}

	written, err := io.Copy(io.MultiWriter(upload, digests), resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, true, ctxErr
		}
		return Result{}, true, services.Wrap(services.ErrTransientDownload, "media", "stream body", ref.URL, err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return Result{}, true, services.Wrap(services.ErrTransientDownload, "media", "stream body",
			fmt.Sprintf("short body: got %d of %d bytes", written, resp.ContentLength), nil)
	}

	total := offset + written
	sums := digests.sums()
	if !ref.Checksums.IsZero() && !ref.Checksums.Matches(sums) {
		algorithm, want := ref.Checksums.Preferred()
		return Result{}, false, services.Wrap(services.ErrCorruptDownload, "media", "verify",
			fmt.Sprintf("%s mismatch for %s: want %s", algorithm, ref.Location, want), nil)
	}
	if ref.Checksums.IsZero() && ref.Size > 0 && ref.Size != total {
		return Result{}, false, services.Wrap(services.ErrCorruptDownload, "media", "verify",
			fmt.Sprintf("size mismatch for %s: want %d, got %d", ref.Location, ref.Size, total), nil)
	}

	return Result{
		Location:  ref.Location,
		Size:      total,
		Resumed:   resumed,
		Checksums: sums,
	}, false, nil
}

func classifyStatus(url string, status int) error {
	detail := fmt.Sprintf("%s returned %d", url, status)
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return services.Wrap(services.ErrTransientDownload, "media", "request", detail, nil)
	case status == http.StatusRequestedRangeNotSatisfiable:
		// Staged bytes no longer line up with the remote object.
		return services.Wrap(services.ErrTransientDownload, "media", "request", detail, nil)
	default:
		return services.Wrap(services.ErrNotFound, "media", "request", detail, nil)
	}
}

type digests struct {
	crc hash.Hash32
	md5 hash.Hash
	sha hash.Hash
	w   io.Writer
}

func newDigests() *digests {
	d := &digests{crc: crc32.NewIEEE(), md5: md5.New(), sha: sha1.New()}
	d.w = io.MultiWriter(d.crc, d.md5, d.sha)
	return d
}

func (d *digests) Write(p []byte) (int, error) {
	return d.w.Write(p)
}

func (d *digests) sums() Checksums {
	return Checksums{
		SHA1:  hex.EncodeToString(d.sha.Sum(nil)),
		MD5:   hex.EncodeToString(d.md5.Sum(nil)),
		CRC32: fmt.Sprintf("%08x", d.crc.Sum32()),
	}
}

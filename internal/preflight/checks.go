package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"rommedia/internal/media"
	"rommedia/internal/screenscraper"
	"rommedia/internal/services"
)

// AccountChecker fetches the ScreenScraper account state.
type AccountChecker interface {
	UserInfo(ctx context.Context) (*screenscraper.UserInfo, error)
}

// CheckScreenScraper verifies the API is reachable, the credentials are
// accepted, and the daily quota is not spent.
func CheckScreenScraper(ctx context.Context, account AccountChecker) Result {
	const name = "ScreenScraper"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	info, err := account.UserInfo(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	q := info.Quota
	if q.MaxRequestsPerDay > 0 && q.RequestsToday >= q.MaxRequestsPerDay {
		return Result{Name: name, Detail: fmt.Sprintf("daily quota spent (%d/%d)", q.RequestsToday, q.MaxRequestsPerDay)}
	}
	user := info.ID
	if user == "" {
		user = "anonymous"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d/%d requests today)", user, q.RequestsToday, q.MaxRequestsPerDay)}
}

// CheckBucket verifies the media bucket can be opened and listed.
func CheckBucket(ctx context.Context, bucketURL string) Result {
	const name = "Media bucket"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	sink, err := media.OpenBlobSink(checkCtx, bucketURL)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bucketURL, err)}
	}
	defer sink.Close()
	if _, _, err := sink.Stat(checkCtx, ".rommedia-preflight"); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bucketURL, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", bucketURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeAPIError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "check timed out (API unresponsive)"
	case errors.Is(err, services.ErrUnauthorized):
		return "credentials rejected"
	case errors.Is(err, services.ErrQuotaExhausted):
		return "daily quota spent"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return err.Error()
}

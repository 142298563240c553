package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnreadableFile     = errors.New("unreadable file")
	ErrAmbiguousContainer = errors.New("ambiguous container")
	ErrTransientLookup    = errors.New("transient lookup error")
	ErrNotFound           = errors.New("not found")
	ErrQuotaExhausted     = errors.New("quota exhausted")
	ErrCorruptDownload    = errors.New("corrupt download")
	ErrTransientDownload  = errors.New("transient download error")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientLookup
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err carries a marker the orchestrator retries
// locally with backoff.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransientLookup),
		errors.Is(err, ErrTransientDownload),
		errors.Is(err, ErrCorruptDownload):
		return true
	default:
		return false
	}
}

// Halting reports whether err should stop the batch from issuing new lookups.
func Halting(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrUnauthorized)
}

// Kind returns a stable snake_case label for the marker carried by err. It is
// used in run summaries and structured progress events.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreadableFile):
		return "unreadable_file"
	case errors.Is(err, ErrAmbiguousContainer):
		return "ambiguous_container"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrCorruptDownload):
		return "corrupt_download"
	case errors.Is(err, ErrTransientDownload):
		return "transient_download"
	case errors.Is(err, ErrTransientLookup):
		return "transient_lookup"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

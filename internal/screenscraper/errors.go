package screenscraper

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"rommedia/internal/services"
)

// StatusError carries a non-success ScreenScraper reply.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

const (
	statusThreadLimit   = 429
	statusQuotaExceeded = 430
	statusKOQuota       = 431
	statusBlacklisted   = 426
	statusAPIClosed     = 423
)

func classifyStatus(endpoint string, status int, body []byte) error {
	statusErr := &StatusError{Endpoint: endpoint, StatusCode: status, Body: snippet(body)}
	var marker error
	var message string
	switch {
	case status == http.StatusNotFound:
		marker, message = services.ErrNotFound, "rom not found"
	case status == statusQuotaExceeded || status == statusKOQuota:
		marker, message = services.ErrQuotaExhausted, "daily quota exceeded"
	case status == statusThreadLimit:
		marker, message = services.ErrTransientLookup, "thread limit reached"
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == statusAPIClosed, status == statusBlacklisted:
		marker, message = services.ErrUnauthorized, "access refused"
	case status >= 500:
		marker, message = services.ErrTransientLookup, "server error"
	case isNotFoundText(body):
		marker, message = services.ErrNotFound, "rom not found"
	case status == http.StatusBadRequest:
		marker, message = services.ErrConfiguration, "request rejected"
	default:
		marker, message = services.ErrMalformedResponse, "unexpected status"
	}
	return services.Wrap(marker, "screenscraper", endpoint, message, statusErr)
}

func isNotFoundText(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("non trouv")) || bytes.Contains(lower, []byte("not found"))
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// Package transport builds the HTTP client shared by the ScreenScraper
// client and the media downloader.
//
// Only connection-level failures are retried here. Status codes are handed
// back untouched so the callers can classify them (quota, not found,
// transient) and the pipeline retry policy stays the single place that
// decides how often an operation is attempted.
package transport

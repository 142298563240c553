// Package preflight provides readiness checks for the filesystem paths,
// media bucket, and ScreenScraper account that rommedia depends on.
//
// The scrape command runs RunAll before dispatching any ROM so a missing
// directory or rejected credential fails fast instead of deferring the whole
// batch. The CLI "rommedia quota" command reuses CheckScreenScraper to show
// account health.
package preflight

// Package logging assembles the slog loggers used by rommedia.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag records with the ROM path, fingerprint, stage and
// run ID. NewNop gives tests and optional wiring a logger that never fails.
package logging

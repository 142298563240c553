// Package services defines shared error markers and context helpers consumed
// by every stage of the scrape pipeline.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper so failures carry a stable
//     classification (retryable, halting, per-ROM terminal) through %w chains.
//   - Context helpers that stamp ROM paths, fingerprint keys, stage names, and
//     run identifiers for logging.
//
// Use these helpers when wiring new pipeline logic so retry and reporting
// behaviour stays uniform across components.
package services

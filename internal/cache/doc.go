// Package cache persists resolution results and downloaded assets per
// fingerprint so repeated runs skip work already done.
//
// Entries live in a single SQLite table as versioned JSON documents keyed by
// rom.Fingerprint.Key. Unknown fields are ignored when reading, so caches
// written by newer releases stay readable. Writes to one fingerprint are
// serialized in-process; a lock file next to the database keeps a second run
// from opening the same cache.
package cache

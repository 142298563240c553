// Package media downloads game artwork and publishes it through a Sink.
//
// Transfers are staged (a .part file for LocalSink, an uncommitted writer for
// BlobSink) and published only after the payload verifies against the
// strongest checksum the remote reported. Interrupted local transfers resume
// with an HTTP Range request.
package media

// Package fingerprint derives content identities for ROM files.
//
// Hashes cover the ROM payload only: zip archives are opened and a single
// entry is selected, gzip and zstd streams are decompressed on the fly.
// Compute is deterministic and never writes to disk.
package fingerprint

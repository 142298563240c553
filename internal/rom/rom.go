package rom

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Container identifies how a ROM payload is wrapped on disk.
type Container string

const (
	ContainerPlain Container = "plain"
	ContainerZip   Container = "zip"
	ContainerGzip  Container = "gzip"
	ContainerZstd  Container = "zstd"
)

// ContainerFor derives the container from a file name.
func ContainerFor(name string) Container {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return ContainerZip
	case ".gz":
		return ContainerGzip
	case ".zst", ".zstd":
		return ContainerZstd
	default:
		return ContainerPlain
	}
}

// File is a ROM on local storage. It is never modified after scanning.
type File struct {
	Path      string    `json:"path"`
	System    string    `json:"system,omitempty"`
	Size      int64     `json:"size"`
	Container Container `json:"container"`
}

// Name returns the base file name.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// Fingerprint identifies a ROM payload by content. Equal fingerprints denote the
// same ROM regardless of file name or container.
type Fingerprint struct {
	CRC32 string `json:"crc32"`
	MD5   string `json:"md5"`
	SHA1  string `json:"sha1"`
	Size  int64  `json:"size"`
	// Entry is the payload name inside a container, or the file name for plain ROMs.
	Entry string `json:"entry,omitempty"`
}

// Key is the cache key for the fingerprint.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("sha1:%s:%d", f.SHA1, f.Size)
}

// Short abbreviates the sha1 to eight hex digits. Asset names use it to
// tell apart ROMs that share a file name stem.
func (f Fingerprint) Short() string {
	if len(f.SHA1) <= 8 {
		return strings.ToLower(f.SHA1)
	}
	return strings.ToLower(f.SHA1[:8])
}

// Same reports whether two fingerprints describe identical payloads.
func (f Fingerprint) Same(other Fingerprint) bool {
	return f.SHA1 == other.SHA1 && f.MD5 == other.MD5 && f.CRC32 == other.CRC32 && f.Size == other.Size
}

// IsZero reports whether no hashes were computed.
func (f Fingerprint) IsZero() bool {
	return f.SHA1 == "" && f.MD5 == "" && f.CRC32 == ""
}

var sidecarExtensions = map[string]struct{}{
	".txt": {}, ".nfo": {}, ".diz": {}, ".jpg": {}, ".jpeg": {}, ".png": {},
	".gif": {}, ".pdf": {}, ".xml": {}, ".dat": {}, ".sfv": {}, ".md5": {},
	".sha1": {}, ".url": {}, ".htm": {}, ".html": {}, ".json": {}, ".srm": {},
	".sav": {}, ".state": {}, ".cue": {},
}

// IsSidecar reports whether a name looks like a non-ROM companion file.
func IsSidecar(name string) bool {
	_, ok := sidecarExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

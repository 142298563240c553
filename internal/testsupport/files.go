package testsupport

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"rommedia/internal/rom"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteROM writes data to <root>/<system>/<name> and returns the scanned file
// together with the fingerprint the fingerprinter will compute for it.
func WriteROM(t testing.TB, root, system, name string, data []byte) (rom.File, rom.Fingerprint) {
	t.Helper()

	path := filepath.Join(root, system, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	file := rom.File{Path: path, System: system, Size: int64(len(data)), Container: rom.ContainerFor(name)}
	fp := FingerprintOf(data)
	fp.Entry = name
	return file, fp
}

// WriteZip writes a zip archive holding the given entries.
func WriteZip(t testing.TB, path string, entries map[string][]byte) rom.File {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return rom.File{
		Path:      path,
		System:    filepath.Base(filepath.Dir(path)),
		Size:      info.Size(),
		Container: rom.ContainerZip,
	}
}

// FingerprintOf hashes data the way the fingerprinter does.
func FingerprintOf(data []byte) rom.Fingerprint {
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	return rom.Fingerprint{
		CRC32: fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)),
		MD5:   hex.EncodeToString(md5Sum[:]),
		SHA1:  hex.EncodeToString(sha1Sum[:]),
		Size:  int64(len(data)),
	}
}

// SHA1Hex returns the lowercase sha1 of data.
func SHA1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

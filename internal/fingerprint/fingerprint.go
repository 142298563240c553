package fingerprint

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"rommedia/internal/rom"
	"rommedia/internal/services"
)

const readChunk = 64 * 1024

// Source is an opened ROM file. Zip containers need random access.
type Source interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// Opener opens a ROM path for reading.
type Opener func(path string) (Source, error)

// OpenFile is the default Opener backed by the local filesystem.
func OpenFile(path string) (Source, error) {
	return os.Open(path)
}

// Fingerprinter hashes ROM payloads. The zero value opens local files and uses
// the builtin systems table for archive entry selection.
type Fingerprinter struct {
	Open    Opener
	Systems *rom.Systems
}

// New returns a Fingerprinter using the local filesystem and the given table.
func New(systems *rom.Systems) *Fingerprinter {
	return &Fingerprinter{Open: OpenFile, Systems: systems}
}

// Compute fingerprints file with the default Fingerprinter.
func Compute(ctx context.Context, file rom.File) (rom.Fingerprint, error) {
	return (&Fingerprinter{}).Compute(ctx, file)
}

// Compute returns the CRC32, MD5, SHA1, and size of the ROM payload. For
// containers the payload is the selected archive entry, never the wrapper.
func (f *Fingerprinter) Compute(ctx context.Context, file rom.File) (rom.Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return rom.Fingerprint{}, err
	}
	open := f.Open
	if open == nil {
		open = OpenFile
	}
	src, err := open(file.Path)
	if err != nil {
		return rom.Fingerprint{}, services.Wrap(services.ErrUnreadableFile, "fingerprint", "open", file.Path, err)
	}
	defer src.Close()

	container := file.Container
	if container == "" {
		container = rom.ContainerFor(file.Path)
	}

	var fp rom.Fingerprint
	switch container {
	case rom.ContainerZip:
		fp, err = f.hashZip(ctx, src, file)
	case rom.ContainerGzip:
		fp, err = hashGzip(ctx, src, file)
	case rom.ContainerZstd:
		fp, err = hashZstd(ctx, src, file)
	default:
		fp, err = hashStream(ctx, src)
		fp.Entry = file.Name()
	}
	if err != nil {
		return rom.Fingerprint{}, classify(err, file.Path)
	}
	return fp, nil
}

// classify keeps cancellation and already-tagged errors intact and marks the
// rest as unreadable.
func classify(err error, path string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrAmbiguousContainer), errors.Is(err, services.ErrUnreadableFile):
		return err
	default:
		return services.Wrap(services.ErrUnreadableFile, "fingerprint", "read", path, err)
	}
}

func hashGzip(ctx context.Context, src Source, file rom.File) (rom.Fingerprint, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return rom.Fingerprint{}, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	fp, err := hashStream(ctx, zr)
	if err != nil {
		return rom.Fingerprint{}, err
	}
	fp.Entry = zr.Name
	if fp.Entry == "" {
		fp.Entry = trimExt(file.Name())
	}
	return fp, nil
}

func hashZstd(ctx context.Context, src Source, file rom.File) (rom.Fingerprint, error) {
	dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return rom.Fingerprint{}, fmt.Errorf("open zstd stream: %w", err)
	}
	defer dec.Close()
	fp, err := hashStream(ctx, dec)
	if err != nil {
		return rom.Fingerprint{}, err
	}
	fp.Entry = trimExt(file.Name())
	return fp, nil
}

// hashStream computes every digest in a single pass, checking ctx between reads.
func hashStream(ctx context.Context, r io.Reader) (rom.Fingerprint, error) {
	crc := crc32.NewIEEE()
	md := md5.New()
	sha := sha1.New()
	w := io.MultiWriter(crc, md, sha)

	buf := make([]byte, readChunk)
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			return rom.Fingerprint{}, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
			size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rom.Fingerprint{}, err
		}
	}
	return rom.Fingerprint{
		CRC32: fmt.Sprintf("%08x", crc.Sum32()),
		MD5:   hex.EncodeToString(md.Sum(nil)),
		SHA1:  hex.EncodeToString(sha.Sum(nil)),
		Size:  size,
	}, nil
}

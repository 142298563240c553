package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const partSuffix = ".part"

// LocalSink publishes assets under a directory. Uploads are staged in a
// sibling .part file and renamed into place, so readers never observe a
// partial asset.
type LocalSink struct {
	root string
}

// NewLocalSink returns a sink rooted at dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{root: dir}
}

// Path resolves a location to its absolute file path.
func (s *LocalSink) Path(location string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(location))
	if cleaned == "." || filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid asset location %q", location)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *LocalSink) Stat(_ context.Context, location string) (int64, bool, error) {
	path, err := s.Path(location)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !info.Mode().IsRegular() {
		return 0, false, fmt.Errorf("asset path %q is not a regular file", path)
	}
	return info.Size(), true, nil
}

func (s *LocalSink) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path, err := s.Path(location)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *LocalSink) Begin(_ context.Context, location string, resume bool) (Upload, error) {
	final, err := s.Path(location)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	part := final + partSuffix
	flags := os.O_CREATE | os.O_RDWR
	if !resume {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open staging file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek staging file: %w", err)
	}
	return &localUpload{file: file, part: part, final: final, offset: offset}, nil
}

type localUpload struct {
	file   *os.File
	part   string
	final  string
	offset int64
	closed bool
}

func (u *localUpload) Write(p []byte) (int, error) {
	return u.file.Write(p)
}

func (u *localUpload) Offset() int64 {
	return u.offset
}

func (u *localUpload) ReplayTo(w io.Writer) error {
	if u.offset == 0 {
		return nil
	}
	_, err := io.Copy(w, io.NewSectionReader(u.file, 0, u.offset))
	return err
}

func (u *localUpload) Truncate() error {
	if err := u.file.Truncate(0); err != nil {
		return err
	}
	if _, err := u.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	u.offset = 0
	return nil
}

func (u *localUpload) Commit() error {
	if u.closed {
		return errors.New("upload already closed")
	}
	u.closed = true
	if err := u.file.Sync(); err != nil {
		_ = u.file.Close()
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := u.file.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(u.part, u.final); err != nil {
		return fmt.Errorf("publish asset: %w", err)
	}
	syncDir(filepath.Dir(u.final))
	return nil
}

func (u *localUpload) Abort(keepPartial bool) error {
	if u.closed {
		return nil
	}
	u.closed = true
	closeErr := u.file.Close()
	if !keepPartial {
		if err := os.Remove(u.part); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return closeErr
}

// syncDir is best-effort; some filesystems refuse directory fsync.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

package rom

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan walks a library laid out as <root>/<system>/<rom> and returns the ROM
// files it contains. Hidden entries and sidecar files are skipped. Files
// directly under root carry no system hint. When root is itself a ROM file a
// single entry is returned, hinted by its parent directory name.
func Scan(ctx context.Context, root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat library %q: %w", root, err)
	}
	if !info.IsDir() {
		return []File{newFile(root, filepath.Base(filepath.Dir(root)), info.Size())}, nil
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || IsSidecar(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, newFile(path, systemHint(root, path), info.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan library %q: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func newFile(path, system string, size int64) File {
	return File{
		Path:      path,
		System:    strings.ToLower(system),
		Size:      size,
		Container: ContainerFor(path),
	}
}

// systemHint is the first directory below root.
func systemHint(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"rommedia/internal/rom"
	"rommedia/internal/services"
)

func (f *Fingerprinter) hashZip(ctx context.Context, src Source, file rom.File) (rom.Fingerprint, error) {
	size := file.Size
	if size <= 0 {
		if sized, ok := src.(interface{ Stat() (fs.FileInfo, error) }); ok {
			if info, err := sized.Stat(); err == nil {
				size = info.Size()
			}
		}
	}
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return rom.Fingerprint{}, fmt.Errorf("open zip archive: %w", err)
	}

	entry, err := f.selectEntry(zr.File, file.System)
	if err != nil {
		return rom.Fingerprint{}, services.Wrap(services.ErrAmbiguousContainer, "fingerprint", "select entry", file.Path, err)
	}

	rc, err := entry.Open()
	if err != nil {
		return rom.Fingerprint{}, fmt.Errorf("open zip entry %q: %w", entry.Name, err)
	}
	defer rc.Close()

	fp, err := hashStream(ctx, rc)
	if err != nil {
		return rom.Fingerprint{}, err
	}
	fp.Entry = path.Base(entry.Name)
	return fp, nil
}

// selectEntry picks the ROM payload out of an archive listing. A lone
// candidate wins; otherwise a unique entry with a native extension for the
// hinted system, then a unique strictly-largest entry.
func (f *Fingerprinter) selectEntry(entries []*zip.File, systemHint string) (*zip.File, error) {
	candidates := make([]*zip.File, 0, len(entries))
	for _, e := range entries {
		if e.FileInfo().IsDir() || strings.HasSuffix(e.Name, "/") {
			continue
		}
		base := path.Base(e.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(e.Name, "__MACOSX/") || rom.IsSidecar(base) {
			continue
		}
		candidates = append(candidates, e)
	}

	switch len(candidates) {
	case 0:
		return nil, errors.New("archive has no ROM entries")
	case 1:
		return candidates[0], nil
	}

	systems := f.Systems
	if systems == nil {
		systems = rom.DefaultSystems()
	}
	if sys, ok := systems.Lookup(systemHint); ok && len(sys.Extensions) > 0 {
		var native []*zip.File
		for _, c := range candidates {
			if sys.HasExtension(c.Name) {
				native = append(native, c)
			}
		}
		if len(native) == 1 {
			return native[0], nil
		}
		if len(native) > 1 {
			candidates = native
		}
	}

	var largest *zip.File
	unique := false
	for _, c := range candidates {
		switch {
		case largest == nil || c.UncompressedSize64 > largest.UncompressedSize64:
			largest = c
			unique = true
		case c.UncompressedSize64 == largest.UncompressedSize64:
			unique = false
		}
	}
	if unique {
		return largest, nil
	}
	return nil, fmt.Errorf("%d entries tie: %s", len(candidates), entryNames(candidates))
}

func entryNames(entries []*zip.File) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return strings.Join(names, ", ")
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

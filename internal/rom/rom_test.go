package rom_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rommedia/internal/rom"
)

func TestFingerprintKey(t *testing.T) {
	fp := rom.Fingerprint{SHA1: "abc", Size: 42}
	if got := fp.Key(); got != "sha1:abc:42" {
		t.Fatalf("Key() = %q", got)
	}
}

func TestFingerprintShort(t *testing.T) {
	fp := rom.Fingerprint{SHA1: "4C0A1E5B9D3F2E7A6B5C4D3E2F1A0B9C8D7E6F5A"}
	if got := fp.Short(); got != "4c0a1e5b" {
		t.Fatalf("Short() = %q", got)
	}
	if got := (rom.Fingerprint{}).Short(); got != "" {
		t.Fatalf("Short() of empty fingerprint = %q", got)
	}
}

func TestContainerFor(t *testing.T) {
	cases := map[string]rom.Container{
		"Sonic.zip":    rom.ContainerZip,
		"Sonic.MD":     rom.ContainerPlain,
		"sonic.md.gz":  rom.ContainerGzip,
		"sonic.md.zst": rom.ContainerZstd,
		"no-extension": rom.ContainerPlain,
	}
	for name, want := range cases {
		if got := rom.ContainerFor(name); got != want {
			t.Errorf("ContainerFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSystemsOverridesAndAliases(t *testing.T) {
	table := rom.NewSystems(map[string]int{"msx": 113, "snes": 400})

	if id := table.ID("Genesis"); id != 1 {
		t.Fatalf("genesis alias id = %d", id)
	}
	if id := table.ID("msx"); id != 113 {
		t.Fatalf("override id = %d", id)
	}
	sys, ok := table.Lookup("snes")
	if !ok || sys.ID != 400 {
		t.Fatalf("snes override = %+v ok=%v", sys, ok)
	}
	if !sys.HasExtension("Chrono Trigger.SFC") {
		t.Fatal("override should keep builtin extensions")
	}
	if table.ID("unknown") != 0 {
		t.Fatal("unknown system should map to 0")
	}
}

func TestScanAssignsSystemHints(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("megadrive/Sonic.zip")
	write("megadrive/readme.txt")
	write("snes/Chrono Trigger.sfc")
	write(".hidden/skip.nes")
	write("loose.nes")

	files, err := rom.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %+v", files)
	}
	got := map[string]rom.File{}
	for _, f := range files {
		got[f.Name()] = f
	}
	if f := got["Sonic.zip"]; f.System != "megadrive" || f.Container != rom.ContainerZip || f.Size != 4 {
		t.Fatalf("unexpected Sonic entry %+v", f)
	}
	if f := got["Chrono Trigger.sfc"]; f.System != "snes" {
		t.Fatalf("unexpected snes entry %+v", f)
	}
	if f := got["loose.nes"]; f.System != "" {
		t.Fatalf("loose file should have no hint, got %+v", f)
	}
}

func TestScanSingleFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gba")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "game.gba")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := rom.Scan(context.Background(), path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || files[0].System != "gba" {
		t.Fatalf("unexpected result %+v", files)
	}
}

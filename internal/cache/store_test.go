package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/rom"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testFingerprint(n int) rom.Fingerprint {
	return rom.Fingerprint{
		CRC32: fmt.Sprintf("%08x", n),
		MD5:   fmt.Sprintf("%032x", n),
		SHA1:  fmt.Sprintf("%040x", n),
		Size:  int64(1024 * n),
		Entry: fmt.Sprintf("game-%d.md", n),
	}
}

func resolved(gameID int64) match.Record {
	return match.Record{
		Resolved: true,
		GameID:   gameID,
		Title:    "Sonic The Hedgehog",
		SystemID: 1,
		Assets: []media.Descriptor{
			{Kind: media.KindBoxArt, URL: "https://media.example/box.png"},
			{Kind: media.KindScreenshot, URL: "https://media.example/ss.png"},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fp := testFingerprint(1)

	entry, err := store.Get(ctx, fp)
	if err != nil || entry != nil {
		t.Fatalf("expected no entry, got %+v err=%v", entry, err)
	}
	if _, err := store.Put(ctx, fp, "/roms/megadrive/sonic.md", resolved(3)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err = store.Get(ctx, fp)
	if err != nil || entry == nil {
		t.Fatalf("Get: %+v err=%v", entry, err)
	}
	if entry.Version != EntryVersion || entry.RomPath != "/roms/megadrive/sonic.md" || entry.Record.GameID != 3 || entry.Fingerprint != fp {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.UpdatedAt.IsZero() {
		t.Fatal("expected updated timestamp")
	}
	if entry.Complete() {
		t.Fatal("entry without assets must not be complete")
	}
}

func TestRecordAssetKeepsOnePerKind(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fp := testFingerprint(2)

	if err := store.RecordAsset(ctx, fp, media.AssetRef{Kind: media.KindBoxArt}); !errors.Is(err, ErrNoEntry) {
		t.Fatalf("expected ErrNoEntry, got %v", err)
	}
	if _, err := store.Put(ctx, fp, "/roms/sonic.md", resolved(3)); err != nil {
		t.Fatal(err)
	}
	failed := media.AssetRef{Kind: media.KindBoxArt, Location: "megadrive/boxart/sonic.png", Status: media.StatusFailed, Attempts: 3, LastError: "timeout"}
	complete := media.AssetRef{Kind: media.KindBoxArt, Location: "megadrive/boxart/sonic.png", Status: media.StatusComplete, Attempts: 1}
	screenshot := media.AssetRef{Kind: media.KindScreenshot, Location: "megadrive/screenshot/sonic.png", Status: media.StatusComplete, Attempts: 1}
	for _, ref := range []media.AssetRef{failed, complete, screenshot} {
		if err := store.RecordAsset(ctx, fp, ref); err != nil {
			t.Fatalf("RecordAsset: %v", err)
		}
	}
	entry, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Assets) != 2 {
		t.Fatalf("expected two assets, got %+v", entry.Assets)
	}
	if ref, _ := entry.Asset(media.KindBoxArt); ref.Status != media.StatusComplete {
		t.Fatalf("boxart not replaced: %+v", ref)
	}
	if !entry.Complete() {
		t.Fatal("entry with every chosen asset complete should be complete")
	}
}

func TestPutResetsAssetsWhenGameChanges(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fp := testFingerprint(3)

	if _, err := store.Put(ctx, fp, "/roms/a.md", resolved(3)); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAsset(ctx, fp, media.AssetRef{Kind: media.KindBoxArt, Status: media.StatusComplete}); err != nil {
		t.Fatal(err)
	}

	entry, err := store.Put(ctx, fp, "/roms/a.md", resolved(3))
	if err != nil || len(entry.Assets) != 1 {
		t.Fatalf("same game should keep assets: %+v err=%v", entry, err)
	}
	entry, err = store.Put(ctx, fp, "/roms/a.md", resolved(4))
	if err != nil || len(entry.Assets) != 0 {
		t.Fatalf("new game should reset assets: %+v err=%v", entry, err)
	}
	stored, _ := store.Get(ctx, fp)
	if len(stored.Assets) != 0 || stored.Record.GameID != 4 {
		t.Fatalf("unexpected stored entry %+v", stored)
	}
}

func TestConcurrentRecordAssetLosesNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fp := testFingerprint(4)
	if _, err := store.Put(ctx, fp, "/roms/b.md", resolved(9)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(media.Kinds)+4)
	for _, kind := range media.Kinds {
		wg.Add(1)
		go func(kind media.Kind) {
			defer wg.Done()
			errs <- store.RecordAsset(ctx, fp, media.AssetRef{Kind: kind, Status: media.StatusComplete})
		}(kind)
	}
	for i := 5; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(ctx, testFingerprint(i), "/roms/other.md", resolved(int64(i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	entry, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Assets) != len(media.Kinds) {
		t.Fatalf("expected %d assets, got %d", len(media.Kinds), len(entry.Assets))
	}
	if count, _ := store.Count(ctx); count != 5 {
		t.Fatalf("expected 5 entries, got %d", count)
	}
}

func TestUnversionedDocumentsAreRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fp := rom.Fingerprint{SHA1: "a9993e364706816aba3e25717850c26c9cd0d89d", Size: 3}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO entries (fingerprint, rom_path, document, updated_at) VALUES (?, ?, ?, ?)`,
		fp.Key(), "/roms/nes/abc.nes", `{"rom_path": "/roms/nes/abc.nes"}`, "2024-05-01T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, fp); err == nil || !strings.Contains(err.Error(), "missing document version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestNewerDocumentsIgnoreUnknownFields(t *testing.T) {
	entry, err := decodeEntry([]byte(`{"version": 2, "rom_path": "/r.nes", "record": {"resolved": false, "reason": "not_found"}, "labels": ["x"]}`))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if entry.RomPath != "/r.nes" || entry.Record.Reason != match.ReasonNotFound {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestOpenIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	first, err := OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPath(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := OpenPath(path)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = second.Close()
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()
	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestListRemoveClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i, path := range []string{"/roms/c.md", "/roms/a.md", "/roms/b.md"} {
		if _, err := store.Put(ctx, testFingerprint(i+1), path, match.Unresolved(match.ReasonNotFound)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := store.List(ctx)
	if err != nil || len(entries) != 3 {
		t.Fatalf("List: %d err=%v", len(entries), err)
	}
	if entries[0].RomPath != "/roms/a.md" || entries[2].RomPath != "/roms/c.md" {
		t.Fatalf("entries not ordered by path: %s, %s", entries[0].RomPath, entries[2].RomPath)
	}

	removed, err := store.Remove(ctx, testFingerprint(1).Key())
	if err != nil || !removed {
		t.Fatalf("Remove: %v %v", removed, err)
	}
	if removed, _ := store.Remove(ctx, testFingerprint(1).Key()); removed {
		t.Fatal("second remove should report nothing removed")
	}
	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("Clear: %d err=%v", cleared, err)
	}
	if count, _ := store.Count(ctx); count != 0 {
		t.Fatalf("expected empty cache, got %d", count)
	}
}

func TestExport(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, testFingerprint(1), "/roms/a.md", resolved(3)); err != nil {
		t.Fatal(err)
	}

	var jsonOut bytes.Buffer
	if err := store.Export(ctx, &jsonOut, "json"); err != nil {
		t.Fatalf("Export json: %v", err)
	}
	var decoded []Entry
	if err := json.Unmarshal(jsonOut.Bytes(), &decoded); err != nil || len(decoded) != 1 || decoded[0].Record.GameID != 3 {
		t.Fatalf("unexpected json export %s (err=%v)", jsonOut.String(), err)
	}

	var yamlOut bytes.Buffer
	if err := store.Export(ctx, &yamlOut, "yaml"); err != nil {
		t.Fatalf("Export yaml: %v", err)
	}
	var generic []map[string]any
	if err := yaml.Unmarshal(yamlOut.Bytes(), &generic); err != nil || len(generic) != 1 {
		t.Fatalf("unexpected yaml export %s (err=%v)", yamlOut.String(), err)
	}
	record, _ := generic[0]["record"].(map[string]any)
	if record["game_id"] != 3 || generic[0]["rom_path"] != "/roms/a.md" {
		t.Fatalf("yaml export lost field names: %v", generic[0])
	}

	if err := store.Export(ctx, &bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

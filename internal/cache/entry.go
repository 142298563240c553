package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/rom"
)

// EntryVersion is the document version written by this release.
const EntryVersion = 1

// Entry is everything known about one fingerprint.
type Entry struct {
	Version     int              `json:"version"`
	Fingerprint rom.Fingerprint  `json:"fingerprint"`
	RomPath     string           `json:"rom_path"`
	Record      match.Record     `json:"record"`
	Assets      []media.AssetRef `json:"assets,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Key is the fingerprint key the entry is stored under.
func (e *Entry) Key() string {
	return e.Fingerprint.Key()
}

// Asset returns the stored reference for kind.
func (e *Entry) Asset(kind media.Kind) (media.AssetRef, bool) {
	for _, ref := range e.Assets {
		if ref.Kind == kind {
			return ref, true
		}
	}
	return media.AssetRef{}, false
}

// setAsset replaces the reference for ref.Kind, keeping assets unique by kind.
func (e *Entry) setAsset(ref media.AssetRef) {
	for i := range e.Assets {
		if e.Assets[i].Kind == ref.Kind {
			e.Assets[i] = ref
			return
		}
	}
	e.Assets = append(e.Assets, ref)
}

// Complete reports whether every asset the record chose is stored complete.
func (e *Entry) Complete() bool {
	if !e.Record.Resolved {
		return false
	}
	for _, d := range e.Record.Assets {
		ref, ok := e.Asset(d.Kind)
		if !ok || ref.Status != media.StatusComplete {
			return false
		}
	}
	return true
}

// decodeEntry reads a stored document. Fields this release does not know
// about are ignored, so documents written by newer releases still load.
func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if entry.Version < 1 {
		return nil, errors.New("decode entry: missing document version")
	}
	return &entry, nil
}

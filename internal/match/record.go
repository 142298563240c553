package match

import (
	"rommedia/internal/media"
)

// Candidate is one remote game offered for a fingerprint.
type Candidate struct {
	GameID     int64              `json:"game_id"`
	Title      string             `json:"title"`
	SystemID   int                `json:"system_id,omitempty"`
	SystemName string             `json:"system_name,omitempty"`
	Exact      bool               `json:"exact"`
	Confidence float64            `json:"confidence"`
	Assets     []media.Descriptor `json:"assets,omitempty"`
}

// AssetKinds counts the distinct asset kinds the candidate offers.
func (c Candidate) AssetKinds() int {
	seen := make(map[media.Kind]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		if asset.Kind == "" || asset.URL == "" {
			continue
		}
		seen[asset.Kind] = struct{}{}
	}
	return len(seen)
}

// Hints carries what the local library says about a ROM's system.
type Hints struct {
	SystemID   int
	SystemName string
}

// Reason explains an unresolved record.
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonAmbiguous      Reason = "ambiguous"
	ReasonQuotaExhausted Reason = "quota_exhausted"
)

// Record is the persisted resolution for a fingerprint.
type Record struct {
	Resolved   bool               `json:"resolved"`
	GameID     int64              `json:"game_id,omitempty"`
	Title      string             `json:"title,omitempty"`
	SystemID   int                `json:"system_id,omitempty"`
	SystemName string             `json:"system_name,omitempty"`
	Exact      bool               `json:"exact,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Assets     []media.Descriptor `json:"assets,omitempty"`
	Reason     Reason             `json:"reason,omitempty"`
	// Candidates lists tied game IDs for ambiguous records.
	Candidates []int64 `json:"candidates,omitempty"`
}

// Resolve builds a resolved record from a candidate and its chosen assets.
func Resolve(c Candidate, assets []media.Descriptor) Record {
	return Record{
		Resolved:   true,
		GameID:     c.GameID,
		Title:      c.Title,
		SystemID:   c.SystemID,
		SystemName: c.SystemName,
		Exact:      c.Exact,
		Confidence: c.Confidence,
		Assets:     assets,
	}
}

// Unresolved builds an unresolved record.
func Unresolved(reason Reason, candidates ...int64) Record {
	return Record{Reason: reason, Candidates: candidates}
}

// Final reports whether the record settles the fingerprint so later runs can
// skip the network. Quota exhaustion is never final.
func (r Record) Final() bool {
	if r.Resolved {
		return true
	}
	return r.Reason == ReasonNotFound || r.Reason == ReasonAmbiguous
}

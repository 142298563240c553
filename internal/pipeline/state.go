package pipeline

import (
	"time"

	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/rom"
)

// State is a ROM's position in the pipeline.
type State string

const (
	StatePending        State = "pending"
	StateFingerprinted  State = "fingerprinted"
	StateResolved       State = "resolved"
	StateUnresolved     State = "unresolved"
	StateAssetsComplete State = "assets_complete"
	StateAssetsPartial  State = "assets_partial"
	StateDeferred       State = "deferred"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	switch s {
	case StateUnresolved, StateAssetsComplete, StateAssetsPartial, StateDeferred, StateFailed:
		return true
	default:
		return false
	}
}

// Outcome is the final report for one ROM.
type Outcome struct {
	Rom         rom.File
	Fingerprint rom.Fingerprint
	State       State
	Record      match.Record
	Assets      []media.AssetRef
	// CacheHit is set when the record came from the cache without a lookup.
	CacheHit  bool
	Err       error
	ErrorKind string
}

// Summary reports a finished run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Total      int
	Resolved   int
	Unresolved int
	Deferred   int
	Failed     int

	AssetsDownloaded int
	AssetsSkipped    int
	AssetsFailed     int

	Halted     bool
	HaltReason string
	Canceled   bool

	Outcomes []Outcome
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

func (s *Summary) count(o Outcome) {
	switch o.State {
	case StateAssetsComplete, StateAssetsPartial, StateResolved:
		s.Resolved++
	case StateUnresolved:
		s.Unresolved++
	case StateDeferred:
		s.Deferred++
	default:
		s.Failed++
	}
}

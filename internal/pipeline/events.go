package pipeline

import (
	"log/slog"
	"time"

	"rommedia/internal/logging"
	"rommedia/internal/media"
	"rommedia/internal/services"
)

// EventType names a progress event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventStateChanged EventType = "state_changed"
	EventAssetDone    EventType = "asset_done"
	EventAssetSkipped EventType = "asset_skipped"
	EventAssetFailed  EventType = "asset_failed"
	EventRunHalted    EventType = "run_halted"
	EventRunFinished  EventType = "run_finished"
)

// Event is a structured progress notification. The orchestrator never renders
// text; reporters decide how to present events.
type Event struct {
	Type        EventType
	RunID       string
	Time        time.Time
	RomPath     string
	Fingerprint string
	State       State
	Asset       media.Kind
	Location    string
	Attempts    int
	Total       int
	Err         error
	ErrorKind   string
}

// Reporter receives events. Calls are serialized by the orchestrator.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// LogReporter writes events through a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r LogReporter) Report(e Event) {
	logger := r.Logger
	if logger == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, string(e.Type))}
	if e.RunID != "" {
		attrs = append(attrs, logging.String(logging.FieldRunID, e.RunID))
	}
	if e.RomPath != "" {
		attrs = append(attrs, logging.String(logging.FieldRom, e.RomPath))
	}
	if e.Fingerprint != "" {
		attrs = append(attrs, logging.String(logging.FieldFingerprint, e.Fingerprint))
	}
	if e.State != "" {
		attrs = append(attrs, logging.String("state", string(e.State)))
	}
	if e.Asset != "" {
		attrs = append(attrs, logging.String("asset", string(e.Asset)))
	}
	if e.Location != "" {
		attrs = append(attrs, logging.String("location", e.Location))
	}
	if e.Attempts > 0 {
		attrs = append(attrs, logging.Int("attempts", e.Attempts))
	}
	if e.Err != nil {
		attrs = append(attrs,
			logging.Error(e.Err),
			logging.String(logging.FieldErrorKind, services.Kind(e.Err)),
		)
	}

	args := logging.Args(attrs...)
	switch e.Type {
	case EventAssetFailed, EventRunHalted:
		logger.Warn(message(e), args...)
	case EventStateChanged:
		if e.State == StateFailed {
			logger.Warn(message(e), args...)
			return
		}
		logger.Info(message(e), args...)
	case EventAssetSkipped:
		logger.Debug(message(e), args...)
	default:
		logger.Info(message(e), args...)
	}
}

func message(e Event) string {
	switch e.Type {
	case EventRunStarted:
		return "scrape run started"
	case EventRunFinished:
		return "scrape run finished"
	case EventRunHalted:
		return "lookups halted"
	case EventAssetDone:
		return "asset downloaded"
	case EventAssetSkipped:
		return "asset already present"
	case EventAssetFailed:
		return "asset download failed"
	default:
		return "rom " + string(e.State)
	}
}

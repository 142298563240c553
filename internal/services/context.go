package services

import "context"

type contextKey string

const (
	romPathKey     contextKey = "rom_path"
	fingerprintKey contextKey = "fingerprint"
	stageKey       contextKey = "stage"
	runIDKey       contextKey = "run_id"
)

// WithRomPath annotates context with the ROM file being processed.
func WithRomPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, romPathKey, path)
}

// RomPathFromContext extracts the ROM path if present.
func RomPathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(romPathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFingerprint annotates context with the ROM's fingerprint key.
func WithFingerprint(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, fingerprintKey, key)
}

// FingerprintFromContext returns the fingerprint key if present.
func FingerprintFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fingerprintKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

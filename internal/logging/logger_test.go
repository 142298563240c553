package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rommedia/internal/config"
	"rommedia/internal/logging"
	"rommedia/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (func(), string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRomPath(context.Background(), "/roms/snes/Chrono Trigger.sfc")
	ctx = services.WithStage(ctx, "resolve")
	component := logging.NewComponentLogger(logger, "lookup")
	return func() {
		logging.WithContext(ctx, component).Info("game resolved", logging.Int("game_id", 1234))
		logging.WithContext(ctx, component).Debug("cache miss")
	}, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "rommedia.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestConsoleLoggerRendersSubjectAndComponent(t *testing.T) {
	emit, path := newFileLogger(t, "console", "info")
	emit()
	content := readLog(t, path)

	if !strings.Contains(content, "INFO [lookup] Chrono Trigger.sfc (resolve) – game resolved") {
		t.Fatalf("unexpected header: %q", content)
	}
	if !strings.Contains(content, "game_id=1234") {
		t.Fatalf("expected game_id attribute, got %q", content)
	}
	if strings.Contains(content, "cache miss") {
		t.Fatalf("debug record leaked at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no source information at info level, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	emit, path := newFileLogger(t, "console", "debug")
	emit()
	content := readLog(t, path)
	if !strings.Contains(content, "cache miss") {
		t.Fatalf("expected debug record, got %q", content)
	}
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected source location in debug logs, got %q", content)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	emit, path := newFileLogger(t, "json", "info")
	emit()
	content := strings.TrimSpace(readLog(t, path))

	var record map[string]any
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		t.Fatalf("decode json record %q: %v", content, err)
	}
	if record["level"] != "info" {
		t.Fatalf("level = %v", record["level"])
	}
	if record[logging.FieldComponent] != "lookup" {
		t.Fatalf("component = %v", record[logging.FieldComponent])
	}
	if record[logging.FieldRom] != "/roms/snes/Chrono Trigger.sfc" {
		t.Fatalf("rom = %v", record[logging.FieldRom])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "download failed", "asset_failed", logging.Error(errors.New("boom")))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected %s in %v", key, record)
		}
	}
	if record[logging.FieldEventType] != "asset_failed" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithFingerprint(ctx, "sha1:abc:10")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
}

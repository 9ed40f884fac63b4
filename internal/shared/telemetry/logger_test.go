package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFieldsThroughLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("gateway.request", map[string]any{"path": "/api/v1/x", "status": 200})
	Error("gateway.failed", map[string]any{"err": errors.New("boom")})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/v1/x" {
		t.Fatalf("unexpected path field %v", fields["path"])
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level")
	}
	if entries[1].ContextMap()["err"] != "boom" {
		t.Fatalf("expected error field, got %v", entries[1].ContextMap())
	}
}

func TestDebugFilteredByLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Debug("noisy", nil)
	if logs.Len() != 0 {
		t.Fatalf("expected debug entry filtered")
	}
}

func TestInitWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "client.log")
	sink, err := os.CreateTemp(dir, "console")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	defer sink.Close()

	flush, err := Init(LogOptions{Level: "debug", File: file, Console: zapcore.AddSync(sink)})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { SetLogger(nil) })

	Warn("stored", map[string]any{"k": "v"})
	flush()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file content")
	}
}

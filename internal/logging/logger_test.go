package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "op", "fetch_all")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "op=fetch_all") {
		t.Fatalf("warn line missing or without fields: %q", out)
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")

	logger.Debug("debug line")
	logger.Info("info line")

	if strings.Contains(buf.String(), "debug line") {
		t.Fatalf("debug logged with fallback level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "info line") {
		t.Fatalf("info missing with fallback level: %q", buf.String())
	}
}

func TestOpen_CreatesDirectoryAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tabby.log")

	logger, closer, err := Open(path, "info")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	logger.Info("first")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logger, closer, err = Open(path, "info")
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	logger.Info("second")
	_ = closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("log file = %q, want both lines", data)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	var buf bytes.Buffer
	l := New(&buf, "info")
	if OrDiscard(l) != l {
		t.Fatal("OrDiscard should return the given logger")
	}
}

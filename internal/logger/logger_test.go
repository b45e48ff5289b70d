package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("expected debug/info to be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "WARN: warn line") || !strings.Contains(out, "ERROR: error line") {
		t.Fatalf("missing warn/error lines:\n%s", out)
	}
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, LevelDebug)
	child := base.WithFields(F("run", 7))

	child.Info("child", F("target", "A"))
	base.Info("base")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "child run=7 target=A") {
		t.Errorf("unexpected child line: %s", lines[0])
	}
	if strings.Contains(lines[1], "run=7") {
		t.Errorf("base logger picked up child fields: %s", lines[1])
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pydirector.log")

	for _, msg := range []string{"first", "second"} {
		l, err := NewFile(path, LevelInfo)
		if err != nil {
			t.Fatalf("NewFile failed: %v", err)
		}
		l.Info(msg)
		if err := l.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("log file missing entries:\n%s", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != LevelDebug || ParseLevel("warning") != LevelWarn || ParseLevel("nope") != LevelInfo {
		t.Fatal("ParseLevel mapping wrong")
	}
}

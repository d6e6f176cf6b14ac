package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel_ValidAndInvalidInput(t *testing.T) {
	if lvl := ParseLevel("warn"); lvl != WARN {
		t.Errorf("ParseLevel(warn) = %v, want WARN", lvl)
	}
	if lvl := ParseLevel("WARN"); lvl != WARN {
		t.Errorf("ParseLevel should be case-insensitive, got %v", lvl)
	}
	if lvl := ParseLevel("not-a-level"); lvl != INFO {
		t.Errorf("ParseLevel(garbage) = %v, want INFO fallback", lvl)
	}
}

func TestNew_WritesJSONLinesToAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l := New(&Config{Level: "info", Output: path, Component: "test", JSONFormat: true})

	l.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"message":"hello"`) {
		t.Errorf("log line missing message field: %s", line)
	}
	if !strings.Contains(line, `"component":"test"`) {
		t.Errorf("log line missing component field: %s", line)
	}
	if !strings.Contains(line, `"key":"value"`) {
		t.Errorf("log line missing the extra key/value pair: %s", line)
	}
}

func TestNew_LevelFiltersBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l := New(&Config{Level: "error", Output: path, JSONFormat: true})

	l.Info("should not appear")
	l.Error("should appear")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "should not appear") {
		t.Error("info-level message was not filtered out by an error-level threshold")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("error-level message was filtered out unexpectedly")
	}
}

func TestWithFields_ChainsWithoutMutatingTheParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	base := New(&Config{Level: "info", Output: path, JSONFormat: true})
	derived := base.WithFields(map[string]interface{}{"run_id": "abc"})

	derived.Info("tagged")
	base.Info("untagged")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"run_id":"abc"`) {
		t.Errorf("derived logger's line missing run_id field: %s", lines[0])
	}
	if strings.Contains(lines[1], "run_id") {
		t.Errorf("base logger's line should not carry the derived field: %s", lines[1])
	}
}

func TestWithError_NilErrorReturnsSameLogger(t *testing.T) {
	l := New(&Config{Level: "info", Output: "stdout", JSONFormat: true})
	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the receiver unchanged")
	}
}

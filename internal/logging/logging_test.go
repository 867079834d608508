package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	out := Open(Options{Stderr: &buf})
	defer out.Close()

	out.Logger(ComponentPublish).Printf("Updating: %s", "A.md")

	if !strings.Contains(buf.String(), "[publish] ") || !strings.Contains(buf.String(), "Updating: A.md") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "wikisync.log")

	out := Open(Options{File: path, Stderr: &buf})
	out.Logger(ComponentSync).Print("hello")
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "[sync] ") || !strings.Contains(string(data), "hello") {
		t.Errorf("unexpected file content %q", data)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output missing: %q", buf.String())
	}
}

func TestCloseWithoutFile(t *testing.T) {
	if err := Open(Options{Stderr: &bytes.Buffer{}}).Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

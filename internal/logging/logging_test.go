package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSink_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "presetctl.log")
	var stderr bytes.Buffer

	s, err := Open(Options{File: path, MaxSizeMB: 10, MaxBackups: 10, Compress: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Logger("sync").Printf("pushed %d files", 3)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "[sync] ") || !strings.Contains(string(data), "pushed 3 files") {
		t.Errorf("log file = %q", data)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want nothing without Verbose", stderr.String())
	}
}

func TestSink_Verbose(t *testing.T) {
	var stderr bytes.Buffer
	s, err := Open(Options{Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	s.Logger("catalog").Print("scanned")
	if !strings.Contains(stderr.String(), "[catalog] ") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestSink_Discard(t *testing.T) {
	s, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Logger("client").Print("dropped")
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestDefaultFile(t *testing.T) {
	if got := DefaultFile(); filepath.Base(got) != "presetctl.log" {
		t.Errorf("DefaultFile() = %q", got)
	}
}

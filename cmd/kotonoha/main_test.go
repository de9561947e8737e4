package main

import (
	"bytes"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hammamikhairi/kotonoha/internal/config"
)

func TestSetupLoggingReportsDirectoryError(t *testing.T) {
	t.Cleanup(func() { stdlog.SetOutput(os.Stderr) })

	// A regular file where the log directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var warn bytes.Buffer
	log, closeLog := setupLogging(config.LogConfig{File: filepath.Join(blocker, "logs", "kotonoha.log")}, &warn)
	defer closeLog()

	if log == nil {
		t.Fatal("logger should fall back to stderr")
	}
	got := warn.String()
	if !strings.Contains(got, "could not create log directory") {
		t.Errorf("warning does not name the directory failure:\n%s", got)
	}
	if !strings.Contains(got, "could not open log file") {
		t.Errorf("warning does not report the open failure:\n%s", got)
	}
}

func TestSetupLoggingCreatesDirectory(t *testing.T) {
	t.Cleanup(func() { stdlog.SetOutput(os.Stderr) })

	path := filepath.Join(t.TempDir(), ".kotonoha", "kotonoha.log")
	var warn bytes.Buffer
	log, closeLog := setupLogging(config.LogConfig{File: path}, &warn)
	log.Info("hello")
	closeLog()

	if warn.Len() != 0 {
		t.Errorf("unexpected warning: %s", warn.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	var got []string
	w := lineWriter(func(s string) { got = append(got, s) })
	if _, err := w.Write([]byte("[MOCK VOICE]: a\n[MOCK VOICE]: b\n")); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "[MOCK VOICE]: a" || got[1] != "[MOCK VOICE]: b" {
		t.Errorf("lines = %q", got)
	}
}

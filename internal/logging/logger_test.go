package logging

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesUnderXDGStateHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("xdg layout is linux-specific")
	}
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	rt, err := New("info")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer rt.Close()

	if want := filepath.Join(stateHome, "bumblebee", "state", "log.jsonl"); rt.Path != want {
		t.Fatalf("expected log path %q, got %q", want, rt.Path)
	}
}

func TestNewAtCreatesPrivateJSONLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "log.jsonl")

	rt, err := NewAt(path, "info")
	if err != nil {
		t.Fatalf("NewAt failed: %v", err)
	}
	rt.Logger.Info("unit-test-log", zap.String("component", "logging"))
	rt.Logger.Debug("hidden-debug-line")
	if err := rt.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	text := string(contents)
	if !strings.Contains(text, `"msg":"unit-test-log"`) || !strings.Contains(text, `"component":"logging"`) {
		t.Fatalf("expected structured log line, got %s", text)
	}
	if strings.Contains(text, "hidden-debug-line") {
		t.Fatalf("expected debug line to be filtered at info level")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat log failed: %v", err)
		}
		if perms := info.Mode().Perm(); perms != 0o600 {
			t.Fatalf("expected 0600 log file, got %o", perms)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"chatty":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestParseLevel(t *testing.T) {
	for in, expected := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	} {
		if ParseLevel(in) != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, ParseLevel(in), expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	defer Init("info")

	Info("hidden")
	Warn("shown", "servo", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "servo=3") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestErrorsLoggedWithoutStack(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info")
	defer Init("info")

	err := errors.Wrap(errors.New("remote I/O error"), "write channel 3")
	Error("Request failed", "err", err)
	out := buf.String()
	if !strings.Contains(out, `err="write channel 3: remote I/O error"`) {
		t.Fatalf("error message missing: %q", out)
	}
	if strings.Count(out, "\n") != 1 || strings.Contains(out, ".go:") {
		t.Fatalf("stack trace logged: %q", out)
	}
}

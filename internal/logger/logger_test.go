package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestHandlerFormat tests the line layout and attribute rendering.
func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Info("capacity increased", "delta", 42)

	line := buf.String()
	if !strings.Contains(line, "[INF] capacity increased delta=42") {
		t.Errorf("unexpected line: %q", line)
	}

	if !strings.HasSuffix(line, "\n") {
		t.Error("line should end with newline")
	}
}

// TestHandlerLevelFilter tests that records below the minimum level are dropped.
func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("dropped")
	log.Debug("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("records below level should be dropped: %q", buf.String())
	}

	if !strings.Contains(buf.String(), "[WRN] kept") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

// TestHandlerWithAttrs tests that attributes and groups carry to derived loggers.
func TestHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("component", "replay")

	log.WithGroup("batch").Info("committed", "ids", 3)

	line := buf.String()
	if !strings.Contains(line, "component=replay") {
		t.Errorf("missing component attr: %q", line)
	}

	if !strings.Contains(line, "batch.ids=3") {
		t.Errorf("missing grouped attr: %q", line)
	}
}

// TestParseLevel tests config string mapping.
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestFormatFields_Sorted(t *testing.T) {
	got := formatFields("peer found", map[string]any{"rssi": -60, "address": "AA:BB"})
	want := "peer found address=AA:BB rssi=-60"
	if got != want {
		t.Errorf("formatFields: got %q, want %q", got, want)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(INFO)

	SetLevel(WARN)
	InfoC("test", "hidden")
	WarnCF("test", "shown", map[string]any{"k": "v"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at WARN: %q", out)
	}
	if !strings.Contains(out, "shown k=v") {
		t.Errorf("expected warn line, got %q", out)
	}
	if !strings.Contains(out, "TEST") {
		t.Errorf("expected subsystem tag, got %q", out)
	}
}

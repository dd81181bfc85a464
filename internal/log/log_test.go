package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden", "k", 1)
	Info("shown", "k", 2)
	Error("failed", errors.New("boom"), "id", "x")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("info line missing: %s", out)
	}
	if !strings.Contains(out, `"err":"boom"`) || !strings.Contains(out, `"id":"x"`) {
		t.Errorf("error line should carry err and kv: %s", out)
	}
}

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "default", input: "", want: slog.LevelInfo},
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "mixed case", input: " Debug ", want: slog.LevelDebug},
		{name: "warn alias", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "nope", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Fatalf("parseLevel(%q): got %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitThenNew(t *testing.T) {
	t.Setenv(LevelEnv, "info")
	var buf bytes.Buffer
	if !Init(&buf) {
		t.Fatal("Init() = false on first call")
	}
	if Init(&bytes.Buffer{}) {
		t.Error("Init() = true on second call")
	}

	New("player").Info("hello", "frames", 3)
	New("player").Debug("hidden")
	out := buf.String()
	if !strings.Contains(out, "component=player") || !strings.Contains(out, "frames=3") {
		t.Errorf("log output = %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if New("") == nil {
		t.Error("New(\"\") = nil")
	}
}

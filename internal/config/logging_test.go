package config

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "empty means info", input: "", want: slog.LevelInfo},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "trace", input: "trace", want: LevelTrace},
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning alias", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "mixed case", input: "DeBuG", want: slog.LevelDebug},
		{name: "whitespace", input: "  error  ", want: slog.LevelError},
		{name: "unknown", input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLogLevel(%q) accepted", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	attr := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	got := ReplaceLogLevelNames(nil, attr)
	if got.Value.String() != "TRACE" {
		t.Errorf("trace renders as %q, want TRACE", got.Value.String())
	}

	other := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(slog.LevelInfo)}
	got = ReplaceLogLevelNames(nil, other)
	if got.Value.Any() != any(slog.LevelInfo) {
		t.Errorf("info level altered: %v", got.Value)
	}
}

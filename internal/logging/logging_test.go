package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		enabled zapcore.Level
	}{
		{"production", Config{Mode: "production", Level: "warn"}, false, zapcore.WarnLevel},
		{"development", Config{Mode: "dev", Level: "debug"}, false, zapcore.DebugLevel},
		{"default level", Config{Mode: "production"}, false, zapcore.InfoLevel},
		{"unknown mode", Config{Mode: "chatty"}, true, 0},
		{"bad level", Config{Mode: "production", Level: "loud"}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %v not enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %v enabled, want it filtered", tt.enabled-1)
			}
		})
	}
}

func TestNew_Nop(t *testing.T) {
	l, err := New(Config{Mode: "nop"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("nop logger should discard everything")
	}
}

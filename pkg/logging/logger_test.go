package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jackdevtech455/youtube-analytics/pkg/config"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		wantDebug bool
	}{
		{"json info", config.LoggingConfig{Level: "INFO", Format: "json"}, false},
		{"text debug", config.LoggingConfig{Level: "DEBUG", Format: "text"}, true},
		{"unknown level falls back to info", config.LoggingConfig{Level: "LOUD", Format: "json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Build(&tt.cfg)
			if err != nil {
				t.Fatalf("Build() failed: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !logger.Core().Enabled(zapcore.InfoLevel) {
				t.Error("info level should always be enabled")
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	oldLogger := Logger
	Logger = zap.New(core)
	defer func() { Logger = oldLogger }()

	WithComponent("channel-resolver").Info("resolved", zap.Int("keys", 2))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "channel-resolver" {
		t.Errorf("expected component field, got: %v", fields["component"])
	}
	if fields["keys"] != int64(2) {
		t.Errorf("expected keys=2, got: %v", fields["keys"])
	}
}

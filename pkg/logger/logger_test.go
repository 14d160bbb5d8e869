package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad level", cfg: Config{Level: "verbose"}},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatalf("expected error for %+v", tc.cfg)
			}
		})
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.log")
	log, err := New(Config{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Named("test").Info("segment solved",
		String("title", "cruise"),
		Float("range_nmi", 1234.5),
		Int("index", 2),
		Error(errors.New("none")),
	)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log output in file")
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	log := NewNop().Named("x").With(Bool("k", true))
	log.Debug("hello")
	log.Warn("hello")
}

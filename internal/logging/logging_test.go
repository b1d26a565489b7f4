package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tracker.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "debug",
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})
	logger.Info().Msg("hello")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}

func TestLogCycle(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogCycle(logger, 3, 1, 1, 5*time.Millisecond, nil)
	if !strings.Contains(buf.String(), `"fired":1`) {
		t.Errorf("expected fired count in %s", buf.String())
	}

	buf.Reset()
	LogCycle(logger, 0, 0, 0, time.Millisecond, errors.New("db locked"))
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level for failed cycle, got %s", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := WithLogger(context.Background(), logger)

	fromCtx := FromContext(ctx)
	fromCtx.Info().Msg("from ctx")
	if !strings.Contains(buf.String(), "from ctx") {
		t.Error("expected logger from context to write")
	}

	// Nop logger when absent
	nop := FromContext(context.Background())
	nop.Info().Msg("dropped")
}

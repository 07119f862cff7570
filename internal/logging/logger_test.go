package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

func TestSetupJSON(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	Setup("warn", "json", &buf)

	ctx := WithRunID(context.Background(), "run-1")
	WithFields(ctx, "file", "a.csv").Info("dropped")
	WithFields(ctx, "file", "a.csv").Warn("skipped block", "nmi", "N1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "skipped block", entry["msg"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "a.csv", entry["file"])
	assert.Equal(t, "N1", entry["nmi"])
}

func TestSetupText(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	Setup("debug", "text", &buf)

	FromContext(context.Background()).Debug("parsed", "rows", 48)
	assert.Contains(t, buf.String(), "msg=parsed")
	assert.Contains(t, buf.String(), "rows=48")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestRunID(t *testing.T) {
	assert.Equal(t, "", RunID(context.Background()))
	assert.Equal(t, "abc", RunID(WithRunID(context.Background(), "abc")))
}

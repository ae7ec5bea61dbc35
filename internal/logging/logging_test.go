package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", &buf)

	log.Info("quiet")
	log.With("component", "inbox").Warn("loud", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "msg=quiet")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=loud")
	assert.Contains(t, out, "component=inbox")
	assert.Contains(t, out, "k=v")
}

func TestNew_UnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := New("loud", &buf)

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.Contains(t, out, "falling back to info level")
	assert.NotContains(t, out, "msg=hidden")
	assert.Contains(t, out, "msg=shown")
}

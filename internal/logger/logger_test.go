package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("weather: fetch failed", "city", "Paris")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "weather: fetch failed", rec["msg"])
	assert.Equal(t, "Paris", rec["city"])
	assert.Equal(t, "INFO", rec["level"])
	assert.True(t, strings.HasSuffix(rec["time"].(string), "Z"), "time must be UTC")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "text", Output: &buf})
	require.NoError(t, err)

	l.Debug("probe", "n", 1)
	assert.Contains(t, buf.String(), "msg=probe")
	assert.Contains(t, buf.String(), "source=")
}

func TestNew_BadConfig(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "chatty"})
	assert.Error(t, err)
}

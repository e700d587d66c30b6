package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.Info("episode loaded", "episode_id", "ep-1")

	assert.Contains(t, buf.String(), `"msg":"episode loaded"`)
	assert.Contains(t, buf.String(), `"episode_id":"ep-1"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses pretty", environment: "development", wantJSON: false},
		{name: "empty uses pretty", environment: "", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Environment: tt.environment, Writer: &buf, Level: slog.LevelInfo})
			log.Info("hello")

			assert.Equal(t, tt.wantJSON, strings.HasPrefix(buf.String(), "{"))
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, h.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, h.Enabled(t.Context(), slog.LevelError))
}

func TestPrettyHandler_GroupsQualifyKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.WithGroup("tick").Info("chapter changed", "position", 61.5)

	assert.Contains(t, buf.String(), "tick.position=61.5")
}

func TestPrettyHandler_FlattensGroupAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Info("recovery complete", slog.Group("stats", slog.Int("closed", 2), slog.Int("unresolved", 1)))

	out := buf.String()
	assert.Contains(t, out, "stats.closed=2")
	assert.Contains(t, out, "stats.unresolved=1")
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil).WithAttrs([]slog.Attr{slog.String("component", "engine")})
	slog.New(h).Info("seek issued")

	assert.Contains(t, buf.String(), "component=engine")
	assert.Contains(t, buf.String(), "seek issued")
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "2026-01-02T03:04:05Z", formatValue(slog.TimeValue(ts)))
	assert.Equal(t, "1.5s", formatValue(slog.DurationValue(1500*time.Millisecond)))
	assert.Equal(t, "30.25", formatValue(slog.Float64Value(30.25)))
	assert.Equal(t, "true", formatValue(slog.BoolValue(true)))
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Writer: &buf, Level: slog.LevelDebug})

	log.Component("tracker").Debug("session opened")

	assert.Contains(t, buf.String(), `"component":"tracker"`)
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Writer: &buf, Level: slog.LevelInfo})

	log.WithError(errors.New("disk full")).Warn("persist failed")

	assert.Contains(t, buf.String(), `"error":"disk full"`)
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Writer: &buf, Level: slog.LevelInfo})

	log.WithFields(map[string]any{"episode_id": "ep-9", "rate": 1.5}).Info("rate changed")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"episode_id":"ep-9"`)
	assert.Contains(t, out, `"rate":1.5`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	require.NotNil(t, log)
	log.Info("dropped")
}

package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuffer(t *testing.T, level slog.Level, format string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetOutputWithLevel(&buf, level, format)
	return &buf
}

func TestLazyLogger_Component(t *testing.T) {
	buf := withBuffer(t, LevelDebug, "text")

	l := Logger("core/transport/ble")
	l.Debug("设备已注册", "addr", "aa:bb")

	out := buf.String()
	assert.Contains(t, out, "component=core/transport/ble")
	assert.Contains(t, out, "addr=aa:bb")
	assert.Equal(t, "core/transport/ble", l.Component())

	t.Log("✅ LazyLogger 输出组件名")
}

func TestLazyLogger_LevelFilter(t *testing.T) {
	buf := withBuffer(t, LevelWarn, "text")

	l := Logger("test")
	l.Info("不应输出")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(LevelInfo))

	l.Warn("应输出")
	assert.Contains(t, buf.String(), "应输出")
}

func TestSetOutputWithLevel_JSON(t *testing.T) {
	buf := withBuffer(t, LevelInfo, "JSON")

	Logger("json").Info("hello", "n", 1)

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "{"), line)
	assert.Contains(t, line, `"component":"json"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.level, level, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghijk", 8))
}

package utils

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggerOptions{Level: "warn"})

	l := slog.New(logger)
	l.Info("hidden")
	l.Warn("shown", "post_id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "post_id=7")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggerOptions{Level: "info", Format: "json"})

	slog.New(logger).Info("publishing", "platform", "tiktok")
	assert.Contains(t, buf.String(), `"platform":"tiktok"`)
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestLogger(level log.Level) (*log.Logger, *bytes.Buffer) {
	out := &bytes.Buffer{}
	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logger, out
}

func TestLogrusHandlerLevels(t *testing.T) {
	logger, out := newTestLogger(log.InfoLevel)
	slogger := New(logger)
	slogger.Debug("hidden")
	assert.Equal(t, "", out.String())
	slogger.Warn("bus stopped", "channel", "can0")
	assert.Contains(t, out.String(), "level=warning")
	assert.Contains(t, out.String(), `msg="bus stopped"`)
	assert.Contains(t, out.String(), "channel=can0")
}

func TestLogrusHandlerAttrs(t *testing.T) {
	logger, out := newTestLogger(log.DebugLevel)
	slogger := New(logger).With("service", "[MON]").WithGroup("frame")
	slogger.Debug("dropping frame", "id", "x123", slog.Group("flags", "eff", true))
	assert.Contains(t, out.String(), "level=debug")
	assert.Contains(t, out.String(), "service=\"[MON]\"")
	assert.Contains(t, out.String(), "frame.id=x123")
	assert.Contains(t, out.String(), "frame.flags.eff=true")
}

func TestLogrusHandlerEnabled(t *testing.T) {
	logger, _ := newTestLogger(log.ErrorLevel)
	handler := NewLogrusHandler(logger)
	assert.False(t, handler.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

package logging

import (
	"context"
	"log/slog"

	log "github.com/sirupsen/logrus"
)

// LogrusHandler is a [slog.Handler] writing records to a logrus logger.
// Packages log with slog, the command line tools configure logrus.
type LogrusHandler struct {
	logger *log.Logger
	fields log.Fields
	group  string
}

func NewLogrusHandler(logger *log.Logger) *LogrusHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogrusHandler{logger: logger, fields: log.Fields{}}
}

// New returns a slog logger backed by logger
func New(logger *log.Logger) *slog.Logger {
	return slog.New(NewLogrusHandler(logger))
}

func toLogrusLevel(level slog.Level) log.Level {
	switch {
	case level >= slog.LevelError:
		return log.ErrorLevel
	case level >= slog.LevelWarn:
		return log.WarnLevel
	case level >= slog.LevelInfo:
		return log.InfoLevel
	}
	return log.DebugLevel
}

func (h *LogrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.IsLevelEnabled(toLogrusLevel(level))
}

func (h *LogrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(log.Fields, len(h.fields)+record.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.addAttr(fields, h.group, attr)
		return true
	})
	entry := h.logger.WithFields(fields)
	if !record.Time.IsZero() {
		entry = entry.WithTime(record.Time)
	}
	entry.Log(toLogrusLevel(record.Level), record.Message)
	return nil
}

func (h *LogrusHandler) addAttr(fields log.Fields, group string, attr slog.Attr) {
	value := attr.Value.Resolve()
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			h.addAttr(fields, key, member)
		}
		return
	}
	fields[key] = value.Any()
}

func (h *LogrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &LogrusHandler{logger: h.logger, fields: make(log.Fields, len(h.fields)+len(attrs)), group: h.group}
	for k, v := range h.fields {
		clone.fields[k] = v
	}
	for _, attr := range attrs {
		clone.addAttr(clone.fields, h.group, attr)
	}
	return clone
}

func (h *LogrusHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &LogrusHandler{logger: h.logger, fields: h.fields, group: group}
}

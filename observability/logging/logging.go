// Package logging configures structured JSON output for the platform
// service. Every line carries the service and environment attributes,
// with the default slog keys renamed to the timestamp/severity/message
// fields the log pipeline indexes on.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide logger and bridges the standard
// library logger through the same handler so third-party packages emit
// the same shape. Dev environments log at debug level, everything else
// at info.
func Setup(service, env string) *slog.Logger {
	logger, handler, attrs := newJSONLogger(os.Stdout, service, env)
	slog.SetDefault(logger)

	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return logger
}

func newJSONLogger(w io.Writer, service, env string) (*slog.Logger, slog.Handler, []slog.Attr) {
	env = strings.TrimSpace(env)
	level := slog.LevelInfo
	if env == "dev" || env == "development" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameKeys,
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return slog.New(handler).With(args...), handler, attrs
}

// renameKeys maps slog's default keys onto the pipeline's field names.
func renameKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}

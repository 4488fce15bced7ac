package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

const defaultService = "lendd"

// Setup wires both slog and the standard library logger to emit structured
// JSON on stdout. Every line carries the daemon's service name, defaulting to
// lendd, and the deployment environment when one is configured.
func Setup(service, env string) *slog.Logger {
	handler := jsonHandler(os.Stdout)
	attrs := serviceLabels(service, env)

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}
	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func jsonHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource:   false,
		ReplaceAttr: renameAttr,
	})
}

// renameAttr maps slog's built-in keys onto the field names the log pipeline
// indexes on.
func renameAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		return slog.Attr{Key: "timestamp", Value: attr.Value}
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		return slog.Attr{Key: "message", Value: attr.Value}
	}
	return attr
}

func serviceLabels(service, env string) []slog.Attr {
	if service = strings.TrimSpace(service); service == "" {
		service = defaultService
	}
	attrs := []slog.Attr{slog.String("service", service)}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	return attrs
}

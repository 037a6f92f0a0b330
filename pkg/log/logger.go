package log

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs the process-wide structured logger. Logs are emitted as
// JSON with a stacktrace attribute attached whenever an error created by
// pkg/errors is logged through ErrAttr.
func Setup(loglevel string) {
	SetupWithWriter(loglevel, os.Stdout)
}

// SetupWithWriter is Setup with an explicit output destination. Tests use
// this to capture log output.
func SetupWithWriter(loglevel string, w io.Writer) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := WithErrorDetails(slog.NewJSONHandler(w, &ops))
	slog.SetDefault(slog.New(handler))
}

// ToLogLevel maps a configuration string to a slog level. Unknown values
// fall back to info so a typo in FORECAST_LOG_LEVEL does not take the
// service down.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	ErrAttrKey        = "error"
	ErrTypeAttrKey    = "error_type"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/systemstart/secrets-bootstrap/pkg/redact"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Initialize installs the default slog logger writing to stdout.
func Initialize(loggingType string, logLevelName string) error {
	handler, err := NewHandler(os.Stdout, loggingType, logLevelName)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logging initialized", "logLevel", logLevelName, "type", loggingType)
	return nil
}

// NewHandler builds the handler for loggingType. Attributes whose key names a
// password, secret or token are masked before they reach w.
func NewHandler(w io.Writer, loggingType string, logLevelName string) (slog.Handler, error) {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(logLevelName))
	if err != nil {
		return nil, fmt.Errorf("could not parse log level: %v", err)
	}

	logHandlerOptions := slog.HandlerOptions{
		AddSource:   true,
		Level:       logLevel,
		ReplaceAttr: maskSensitive,
	}

	switch loggingType {
	case JSON:
		return slog.NewJSONHandler(w, &logHandlerOptions), nil
	case Text:
		return slog.NewTextHandler(w, &logHandlerOptions), nil
	case Tint:
		return tint.NewHandler(w, &tint.Options{
			AddSource:   logHandlerOptions.AddSource,
			Level:       logHandlerOptions.Level,
			ReplaceAttr: logHandlerOptions.ReplaceAttr,
		}), nil
	default:
		return nil, fmt.Errorf("unknown logging type: %s", loggingType)
	}
}

func maskSensitive(_ []string, a slog.Attr) slog.Attr {
	if !redact.IsSensitive(a.Key) {
		return a
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString, slog.KindAny:
		return slog.String(a.Key, redact.Mask(v.String()))
	default:
		return a
	}
}

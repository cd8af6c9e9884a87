package logging

import (
	"log/slog"
	"os"
)

// Module names the logical component a log line belongs to.
type Module string

const moduleKey = "module"

// NewLogger builds the service-wide JSON logger. Level comes from
// configuration; the module attribute is attached to every record.
func NewLogger(level slog.Level, module Module) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With(slog.String(moduleKey, string(module)))
}

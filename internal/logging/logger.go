package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON logger on stdout and returns its handler so callers
// can fan it out once more sinks are available. Development logs at debug.
func Setup(appEnv string) slog.Handler {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return handler
}

// Attach makes every record go to base and to each extra handler.
func Attach(base slog.Handler, extra ...slog.Handler) {
	slog.SetDefault(slog.New(NewMultiHandler(append([]slog.Handler{base}, extra...)...)))
}

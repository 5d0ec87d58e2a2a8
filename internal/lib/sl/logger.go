package sl

import (
	"io"
	"log/slog"
)

const envLocal = "local"

// SetupLogger создаёт текстовый логгер: для local уровень Debug, иначе Info.
func SetupLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env == envLocal {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

package cli

import (
	"log/slog"
	"os"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/config"
	"github.com/lmittmann/tint"
)

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg config.Config) *slog.Logger {
	level := cfg.LogLevel()
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	return logger
}

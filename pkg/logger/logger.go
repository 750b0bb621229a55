package logger

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/config"
)

// New builds the logger for one process. Output goes to w (stderr when nil),
// rendered for humans when cfg.Pretty is set.
func New(cfg config.Log, service string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// ForRun stamps every event of an export run with a fresh run id.
func ForRun(log zerolog.Logger, export string) (zerolog.Logger, string) {
	runID := uuid.NewString()
	return log.With().Str("export", export).Str("run_id", runID).Logger(), runID
}

func WithFields(log zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}

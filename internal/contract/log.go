package contract

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Format is either "console" or "json".
func NewLogger(level zerolog.Level, format string, w io.Writer) zerolog.Logger {
	out := w
	if format != JSONLogFormat {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithLogger attaches the logger to ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Logger returns the logger carried by ctx, or a disabled one.
func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

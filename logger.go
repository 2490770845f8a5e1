package metrigo

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger to provide structured logging for the engine.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new logger with the given handler.
// If handler is nil, uses a default text handler writing to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a logger that outputs JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a logger that outputs text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger returns a logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithSeriesID returns a logger with the series ID attached.
func (l *Logger) WithSeriesID(id SeriesID) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("series_id", uint64(id)))}
}

// WithGranularity returns a logger with the granularity attached.
func (l *Logger) WithGranularity(g time.Duration) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Duration("granularity", g))}
}

// LogWrite logs a write operation. Retention rejections are expected
// under late traffic and log at Warn; other failures log at Error.
func (l *Logger) LogWrite(ctx context.Context, id SeriesID, created bool, duration time.Duration, err error) {
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrBucketExpired) {
			level = slog.LevelWarn
		}

		l.Log(ctx, level, "write failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)

		return
	}

	l.DebugContext(ctx, "write completed",
		slog.Uint64("series_id", uint64(id)),
		slog.Bool("series_created", created),
		slog.Duration("duration", duration),
	)
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, granularity time.Duration, seriesCount, gapCount int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			slog.Duration("granularity", granularity),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)

		return
	}

	l.DebugContext(ctx, "query completed",
		slog.Duration("granularity", granularity),
		slog.Int("series", seriesCount),
		slog.Int("gaps", gapCount),
		slog.Duration("duration", duration),
	)
}

// LogSweep logs a maintenance sweep.
func (l *Logger) LogSweep(ctx context.Context, stats SweepStats, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sweep failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)

		return
	}

	l.DebugContext(ctx, "sweep completed",
		slog.Int("series_swept", stats.SeriesSwept),
		slog.Int("buckets_folded", stats.BucketsFolded),
		slog.Int("buckets_rebuilt", stats.BucketsRebuilt),
		slog.Int("buckets_sealed", stats.BucketsSealed),
		slog.Int("buckets_evicted", stats.BucketsEvicted),
		slog.Duration("duration", duration),
	)
}

// LogDelete logs a series deletion.
func (l *Logger) LogDelete(ctx context.Context, deleted bool, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)

		return
	}

	l.DebugContext(ctx, "delete completed",
		slog.Bool("deleted", deleted),
		slog.Duration("duration", duration),
	)
}

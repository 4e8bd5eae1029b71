package ivfshard

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with ivfshard-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a copy of the logger. ctx is not read; no fields are
// added from it.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		Logger: l.Logger.With(),
	}
}

// WithShard adds a shard_id field to the logger.
func (l *Logger) WithShard(shardID uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard_id", shardID),
	}
}

// WithNode adds a node_id field to the logger.
func (l *Logger) WithNode(nodeID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("node_id", nodeID),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBuild logs a coordinator Build call: training the coarse quantizer
// and routing postings to shards.
func (l *Logger) LogBuild(ctx context.Context, n, nlist int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"n", n,
			"nlist", nlist,
			"duration", duration,
			"error", err,
		)
	} else {
		rate := float64(n) / duration.Seconds()
		l.InfoContext(ctx, "build completed",
			"n", n,
			"nlist", nlist,
			"duration", duration,
			"throughput", humanize.SIWithDigits(rate, 1, "vectors/sec"),
		)
	}
}

// LogSearch logs a Search call, including nprobe and whether the result
// was partial due to unavailable shards.
func (l *Logger) LogSearch(ctx context.Context, k, nprobe, hits int, duration time.Duration, partial bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"nprobe", nprobe,
			"duration", duration,
			"error", err,
		)
		return
	}
	if partial {
		l.WarnContext(ctx, "search returned partial result",
			"k", k,
			"nprobe", nprobe,
			"hits", hits,
			"duration", duration,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"nprobe", nprobe,
		"hits", hits,
		"duration", duration,
	)
}

// LogMutate logs a call to the mutation API (Add, Remove, Update): op names
// which one, n reports how many entries it affected (0 for Remove/Update
// that matched nothing).
func (l *Logger) LogMutate(ctx context.Context, op string, id int64, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mutation failed",
			"op", op,
			"id", id,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "mutation applied",
		"op", op,
		"id", id,
		"affected", n,
	)
}

// LogShardUnavailable logs a shard that failed to serve a dispatched
// request, whether due to a hard error or a search deadline.
func (l *Logger) LogShardUnavailable(ctx context.Context, shardID uint32, nodeID string, err error) {
	l.WarnContext(ctx, "shard unavailable",
		"shard_id", shardID,
		"node_id", nodeID,
		"error", err,
	)
}

// LogCentroidPlacement logs the outcome of routing a centroid's postings
// to its owning shard during Build.
func (l *Logger) LogCentroidPlacement(ctx context.Context, centroid uint32, shardID uint32, postings int) {
	l.DebugContext(ctx, "centroid placed",
		"centroid", centroid,
		"shard_id", shardID,
		"postings", postings,
	)
}

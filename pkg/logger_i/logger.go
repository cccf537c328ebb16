package logger_i

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
)

// Logger resolves slog.Default() on every call, so package level loggers created
// before Init still pick up the configured handler.
type Logger struct {
	attrs []any
}

func Init(isProd bool) {
	options := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}

	var handler slog.Handler
	if isProd {
		options.Level = config.LOG_LEVEL_PROD
		handler = slog.NewJSONHandler(os.Stdout, options)

	} else {
		handler = slog.NewTextHandler(os.Stdout, options)

	}
	newLogger := slog.New(handler)
	slog.SetDefault(newLogger)
}

func NewLogger(section string) *Logger {
	return &Logger{
		attrs: []any{"component", section},
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.logWithSource(slog.LevelInfo, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.logWithSource(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logWithSource(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logWithSource(slog.LevelDebug, msg, args...)
}

func (l *Logger) logWithSource(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	handler := slog.Default().Handler()
	if !handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// Skip 3 levels: runtime.Callers, logWithSource, and the Info/Err/Dbg wrapper
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(l.attrs...)
	record.Add(args...)
	_ = handler.Handle(ctx, record)
}

func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	return &Logger{
		attrs: append(attrs, args...),
	}
}

// FromContext tags the logger with the trace id carried by ctx, if any.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		return l.With(config.TRACE_ID_KEY, trace)
	}
	return l
}

// TraceId returns the trace id carried by ctx or an empty string.
func TraceId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

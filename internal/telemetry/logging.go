package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggerOptions — параметры SetupLogger.
type LoggerOptions struct {
	// Console — поток консольного вывода (по умолчанию os.Stdout).
	Console io.Writer

	// LogFolder — каталог лог-файла run. Пусто = только консоль.
	LogFolder string

	// Label — префикс имени лог-файла (обычно код процесса).
	Label string
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат консоли определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат
//   - "text" — цветной вывод через tint
//
// Если задан LogFolder, записи дублируются в JSON-файл
// <LogFolder>/<Label>_<yyyymmdd_hhmmss>.log. Возвращённый Closer
// закрывает файл.
func SetupLogger(o LoggerOptions) (*slog.Logger, io.Closer, error) {
	level := LogLevel()
	console := o.Console
	if console == nil {
		console = os.Stdout
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = tint.NewHandler(console, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: time.DateTime,
		})
	} else {
		handler = slog.NewJSONHandler(console, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		})
	}

	var closer io.Closer = nopCloser{}
	if o.LogFolder != "" {
		if err := os.MkdirAll(o.LogFolder, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log folder: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", o.Label, time.Now().Format("20060102_150405"))
		f, err := os.OpenFile(filepath.Join(o.LogFolder, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		handler = fanout{handler, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, closer, nil
}

// LastLogFile возвращает самый свежий *.log в каталоге.
func LastLogFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no log files in %s: %w", dir, os.ErrNotExist)
	}
	type entry struct {
		path string
		mod  time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{m, info.ModTime()})
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no readable log files in %s: %w", dir, os.ErrNotExist)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].mod.Equal(entries[j].mod) {
			return entries[i].path > entries[j].path
		}
		return entries[i].mod.After(entries[j].mod)
	})
	return entries[0].path, nil
}

// fanout отправляет запись во все обработчики.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithStep возвращает логгер с индексом и именем шага.
func WithStep(logger *slog.Logger, index int, name string) *slog.Logger {
	return logger.With("step", index, "step_name", name)
}

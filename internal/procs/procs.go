// Package procs завершает внешние процессы (Excel, браузеры, Outlook),
// которые могли остаться после шага и держать блокировки файлов.
package procs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Lister возвращает запущенные процессы. Нужен для подмены в тестах.
type Lister func(ctx context.Context) ([]Process, error)

// Process — процесс, который можно завершить.
type Process interface {
	NameWithContext(ctx context.Context) (string, error)
	KillWithContext(ctx context.Context) error
}

// Killer завершает процессы по имени. Ошибки собираются, но не
// останавливают обход: каждый найденный процесс получает свою попытку.
type Killer struct {
	list   Lister
	logger *slog.Logger
}

// NewKiller создаёт Killer поверх gopsutil.
func NewKiller(logger *slog.Logger) *Killer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Killer{list: systemProcesses, logger: logger}
}

// NewKillerWithLister создаёт Killer с собственным источником процессов.
func NewKillerWithLister(list Lister, logger *slog.Logger) *Killer {
	k := NewKiller(logger)
	k.list = list
	return k
}

// Kill завершает все процессы, имя которых совпадает с одним из names
// без учёта регистра. Возвращает объединённую ошибку.
func (k *Killer) Kill(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	procs, err := k.list(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var errs []error
	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !wanted[strings.ToLower(name)] {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kill %s: %w", name, err))
			continue
		}
		killed++
	}

	k.logger.Info("processes killed", "names", names, "killed", killed, "errors", len(errs))
	return errors.Join(errs...)
}

func systemProcesses(ctx context.Context) ([]Process, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out, nil
}

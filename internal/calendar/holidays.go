package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/excel"
)

const (
	holidaySheet  = "base"
	holidayLayout = "2006/01/02"
)

// HolidayPath возвращает путь к книге праздников.
func HolidayPath(cfg *config.Config) string {
	return filepath.Join(cfg.Framework.ProcessData, "robot_date", "robot_holidays.xlsx")
}

// Holidays — множество праздничных дат.
type Holidays struct {
	dates map[string]bool
}

// NewHolidays создаёт множество из списка дат.
func NewHolidays(days ...time.Time) *Holidays {
	h := &Holidays{dates: make(map[string]bool, len(days))}
	for _, d := range days {
		h.dates[d.Format(holidayLayout)] = true
	}
	return h
}

// LoadHolidays читает книгу праздников (колонки DATE и HOLIDAY).
func LoadHolidays(path string) (*Holidays, error) {
	t, err := excel.Read(path, holidaySheet)
	if err != nil {
		return nil, err
	}
	h := &Holidays{dates: map[string]bool{}}
	for _, row := range t.Rows {
		date := strings.TrimSpace(t.Value(row, "DATE"))
		if date == "" || !excel.IsTrue(t.Value(row, "HOLIDAY")) {
			continue
		}
		if _, err := time.Parse(holidayLayout, date); err != nil {
			continue
		}
		h.dates[date] = true
	}
	return h, nil
}

// Save записывает книгу праздников.
func (h *Holidays) Save(path string) error {
	t := &excel.Table{Header: []string{"DATE", "HOLIDAY"}}
	for _, d := range h.Dates() {
		t.Rows = append(t.Rows, []string{d, "TRUE"})
	}
	return excel.Write(path, holidaySheet, t)
}

// Contains проверяет, что дата — праздник.
func (h *Holidays) Contains(t time.Time) bool {
	return h.dates[t.Format(holidayLayout)]
}

// HasYear проверяет, есть ли в множестве даты указанного года.
func (h *Holidays) HasYear(year int) bool {
	prefix := fmt.Sprintf("%04d/", year)
	for d := range h.dates {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

// Dates возвращает отсортированные даты в формате 2006/01/02.
func (h *Holidays) Dates() []string {
	out := make([]string, 0, len(h.dates))
	for d := range h.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Len возвращает количество праздников.
func (h *Holidays) Len() int { return len(h.dates) }

// Fetcher загружает праздники за год.
type Fetcher interface {
	Fetch(ctx context.Context, year int) ([]time.Time, error)
}

// EnsureHolidays обновляет книгу праздников, если её нет или в ней нет
// дат года year. Загружаются годы year-yearRange..year+yearRange.
func EnsureHolidays(ctx context.Context, path string, year, yearRange int, f Fetcher, logger *slog.Logger) (*Holidays, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if h, err := LoadHolidays(path); err == nil && h.HasYear(year) {
		return h, nil
	}

	logger.Info("getting office holidays", "year", year, "range", yearRange)
	h := &Holidays{dates: map[string]bool{}}
	for y := year - yearRange; y <= year+yearRange; y++ {
		days, err := f.Fetch(ctx, y)
		if err != nil {
			return nil, fmt.Errorf("fetch holidays %d: %w", y, err)
		}
		for _, d := range days {
			h.dates[d.Format(holidayLayout)] = true
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create holiday dir: %w", err)
	}
	if err := h.Save(path); err != nil {
		return nil, err
	}
	logger.Info("finished getting office holidays", "path", path, "count", h.Len())
	return h, nil
}

package calendar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
)

// ExecutionFile — имя файла с датой исполнения.
const ExecutionFile = "_execution_datetime.txt"

// Options — модификаторы даты.
type Options struct {
	// DeltaYears, DeltaMonths, DeltaDays — смещение поверх смещений окружения.
	DeltaYears  int
	DeltaMonths int
	DeltaDays   int

	// SetTime — использовать эту дату вместо даты исполнения и смещений.
	SetTime *time.Time

	// AllowWeekend — не сдвигать дату с выходных на будни.
	AllowWeekend bool

	// OnlyBusinessDays — сдвигать дату на ближайший рабочий день.
	OnlyBusinessDays bool

	// Future — направление сдвигов: вперёд (true) или назад (false).
	Future bool
}

// RobotDate — дата, с которой работает процесс.
type RobotDate struct {
	t         time.Time
	execution time.Time
	holidays  *Holidays
}

// New создаёт RobotDate по конфигурации.
func New(cfg *config.Config, opts Options) (*RobotDate, error) {
	d := &RobotDate{}

	holidays, err := LoadHolidays(HolidayPath(cfg))
	if err != nil {
		holidays = &Holidays{dates: map[string]bool{}}
	}
	d.holidays = holidays

	if opts.SetTime != nil {
		d.t = *opts.SetTime
	} else {
		exe, err := ExecutionTime(cfg.Framework.ProcessData)
		if err != nil {
			return nil, err
		}
		env := cfg.Env()
		d.execution = exe
		d.t = AddDate(exe, env.ExecutionYearOffset, env.ExecutionMonthOffset, env.ExecutionDayOffset)
		d.t = AddDate(d.t, opts.DeltaYears, opts.DeltaMonths, opts.DeltaDays)
	}

	d.apply(opts)
	return d, nil
}

// NewWithHolidays создаёт RobotDate на фиксированную дату с заданными праздниками.
func NewWithHolidays(t time.Time, holidays *Holidays, opts Options) *RobotDate {
	if holidays == nil {
		holidays = &Holidays{dates: map[string]bool{}}
	}
	d := &RobotDate{t: t, holidays: holidays}
	d.apply(opts)
	return d
}

func (d *RobotDate) apply(opts Options) {
	if !opts.AllowWeekend {
		switch d.t.Weekday() {
		case time.Saturday:
			if opts.Future {
				d.t = d.t.AddDate(0, 0, 2)
			} else {
				d.t = d.t.AddDate(0, 0, -1)
			}
		case time.Sunday:
			if opts.Future {
				d.t = d.t.AddDate(0, 0, 1)
			} else {
				d.t = d.t.AddDate(0, 0, -2)
			}
		}
	}
	if opts.OnlyBusinessDays {
		d.t = d.PreviousOrNextBusinessDay(opts.Future)
	}
}

// ExecutionTime читает дату исполнения из файла в dir или создаёт файл
// с текущим временем.
func ExecutionTime(dir string) (time.Time, error) {
	path := filepath.Join(dir, ExecutionFile)
	data, err := os.ReadFile(path)
	if err == nil {
		t, err := time.ParseInLocation(domain.TimeLayout, strings.TrimSpace(string(data)), time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return t, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf("read %s: %w", path, err)
	}

	now := time.Now().Truncate(time.Second)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return time.Time{}, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(now.Format(domain.TimeLayout)), 0o644); err != nil {
		return time.Time{}, fmt.Errorf("write %s: %w", path, err)
	}
	return now, nil
}

// AddDate прибавляет годы, месяцы и дни. В отличие от time.AddDate,
// день месяца ограничивается длиной целевого месяца: 31 января + 1 месяц
// = 28/29 февраля.
func AddDate(t time.Time, years, months, days int) time.Time {
	if years != 0 || months != 0 {
		y, m, d := t.Date()
		first := time.Date(y+years, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
		last := daysIn(first)
		if d > last {
			d = last
		}
		t = time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t.AddDate(0, 0, days)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Time возвращает дату робота.
func (d *RobotDate) Time() time.Time { return d.t }

// Execution возвращает дату исполнения без смещений (нулевая при SetTime).
func (d *RobotDate) Execution() time.Time { return d.execution }

// Quarter возвращает квартал (1..4).
func (d *RobotDate) Quarter() int { return (int(d.t.Month())-1)/3 + 1 }

// StartOfMonth возвращает первый день месяца.
func (d *RobotDate) StartOfMonth() time.Time {
	return time.Date(d.t.Year(), d.t.Month(), 1, 0, 0, 0, 0, d.t.Location())
}

// EndOfMonth возвращает последний день месяца.
func (d *RobotDate) EndOfMonth() time.Time {
	return time.Date(d.t.Year(), d.t.Month(), daysIn(d.t), 0, 0, 0, 0, d.t.Location())
}

// IsHoliday проверяет, что дата робота — праздник.
func (d *RobotDate) IsHoliday() bool { return d.holidays.Contains(d.t) }

// IsBusinessDay проверяет, что дата робота — рабочий день.
func (d *RobotDate) IsBusinessDay() bool { return d.IsDateBusinessDay(d.t) }

// IsDateBusinessDay проверяет произвольную дату: не суббота,
// не воскресенье и не праздник.
func (d *RobotDate) IsDateBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !d.holidays.Contains(t)
}

// MonthBusinessDays возвращает рабочие дни месяца даты робота.
func (d *RobotDate) MonthBusinessDays() []time.Time {
	var out []time.Time
	start := d.StartOfMonth()
	for day := start; day.Month() == start.Month(); day = day.AddDate(0, 0, 1) {
		if d.IsDateBusinessDay(day) {
			out = append(out, day)
		}
	}
	return out
}

// StartOfBusinessMonth возвращает первый рабочий день месяца.
func (d *RobotDate) StartOfBusinessMonth() time.Time {
	days := d.MonthBusinessDays()
	if len(days) == 0 {
		return d.StartOfMonth()
	}
	return days[0]
}

// EndOfBusinessMonth возвращает последний рабочий день месяца.
func (d *RobotDate) EndOfBusinessMonth() time.Time {
	days := d.MonthBusinessDays()
	if len(days) == 0 {
		return d.EndOfMonth()
	}
	return days[len(days)-1]
}

// PreviousOrNextBusinessDay возвращает ближайший рабочий день:
// вперёд при next, иначе назад. Сама дата подходит, если она рабочая.
// Поиск ограничен годом.
func (d *RobotDate) PreviousOrNextBusinessDay(next bool) time.Time {
	step := -1
	if next {
		step = 1
	}
	for i := 0; i < 366; i++ {
		t := d.t.AddDate(0, 0, step*i)
		if d.IsDateBusinessDay(t) {
			return t
		}
	}
	return d.t
}

// InFirstOrLastBusinessDays проверяет, попадает ли дата робота в первые
// (first) или последние n рабочих дней месяца.
func (d *RobotDate) InFirstOrLastBusinessDays(n int, first bool) bool {
	days := d.MonthBusinessDays()
	if n <= 0 || len(days) == 0 {
		return false
	}
	n = min(n, len(days))
	var window []time.Time
	if first {
		window = days[:n]
	} else {
		window = days[len(days)-n:]
	}
	today := dateOnly(d.t)
	for _, day := range window {
		if day.Equal(today) {
			return true
		}
	}
	return false
}

// String возвращает дату в формате отчётов.
func (d *RobotDate) String() string {
	return d.t.Format(domain.TimeLayout)
}

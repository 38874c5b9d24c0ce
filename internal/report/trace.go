package report

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/shaiso/rpabot/internal/domain"
)

// CheckLogs — источник ошибки, когда стек не удалось разобрать.
const CheckLogs = "CHECK LOGS"

// Кадры рантайма, механизма ошибок и секвенсора в отчёт не попадают:
// секвенсор никогда не является местом ошибки шага.
var (
	skipPrefixes = []string{"runtime/debug.", "runtime.", "panic"}
	skipContains = []string{
		"internal/steps.Systemf",
		"internal/steps.AsSystem",
		"internal/steps.FromPanic",
		"internal/worker.",
	}
)

// ParseTrace разбирает стек вызовов Go (формат debug.Stack) в кадры.
// Кадры идут от места ошибки к main. Для каждого кадра читается
// строка исходника, если файл доступен.
func ParseTrace(stack string) ([]domain.TraceFrame, error) {
	var frames []domain.TraceFrame

	sc := bufio.NewScanner(strings.NewReader(stack))
	var fn string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "goroutine "), strings.HasPrefix(line, "created by "):
			fn = ""
		case strings.HasPrefix(line, "\t"):
			if fn == "" {
				continue
			}
			file, n, ok := parseLocation(strings.TrimSpace(line))
			if ok && !skipFrame(fn) {
				frames = append(frames, domain.TraceFrame{
					File:     file,
					Line:     n,
					Function: fn,
					Code:     sourceLine(file, n),
				})
			}
			fn = ""
		case line != "":
			fn = trimArgs(line)
		}
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

// Source возвращает "file:line" первого кадра или CheckLogs.
func Source(frames []domain.TraceFrame) string {
	if len(frames) == 0 {
		return CheckLogs
	}
	return frames[0].File + ":" + strconv.Itoa(frames[0].Line)
}

// parseLocation разбирает "/path/file.go:42 +0x1d".
func parseLocation(s string) (string, int, bool) {
	if i := strings.LastIndex(s, " +0x"); i > 0 {
		s = s[:i]
	}
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}

// trimArgs убирает аргументы вызова: "pkg.(*T).M(0x1, ...)" → "pkg.(*T).M".
func trimArgs(fn string) string {
	if !strings.HasSuffix(fn, ")") {
		return fn
	}
	if i := strings.LastIndex(fn, "("); i > 0 {
		return fn[:i]
	}
	return fn
}

func skipFrame(fn string) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	for _, s := range skipContains {
		if strings.Contains(fn, s) {
			return true
		}
	}
	return false
}

func sourceLine(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for i := 1; sc.Scan(); i++ {
		if i == n {
			return strings.TrimSpace(sc.Text())
		}
	}
	return ""
}

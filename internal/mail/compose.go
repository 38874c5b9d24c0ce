package mail

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizer пропускает безопасную разметку и inline-стили таблиц.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyles("border", "border-collapse", "background-color", "color",
		"text-align", "padding", "font-family", "font-size", "font-weight").Globally()
	return p
}()

// Sanitize очищает HTML-фрагмент.
func Sanitize(s string) string {
	return sanitizer.Sanitize(s)
}

// Format подставляет позиционные поля в шаблон.
//
// Поддерживаются {} (следующее поле), {N} (поле N), {{ и }} (скобки).
func Format(tmpl string, fields []Field) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))
	next := 0

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed brace at %d", ErrTemplateField, i)
			}
			key := tmpl[i+1 : i+end]
			idx := next
			if key == "" {
				next++
			} else {
				n, err := strconv.Atoi(key)
				if err != nil {
					return "", fmt.Errorf("%w: {%s}", ErrTemplateField, key)
				}
				idx = n
			}
			if idx < 0 || idx >= len(fields) {
				return "", fmt.Errorf("%w: index %d out of range (%d fields)", ErrTemplateField, idx, len(fields))
			}
			f := fields[idx]
			if f.Trusted {
				b.WriteString(f.Value)
			} else {
				b.WriteString(Sanitize(f.Value))
			}
			i += end
		case c == '}':
			return "", fmt.Errorf("%w: single '}' at %d", ErrTemplateField, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Compose читает шаблоны тела и обёртки и собирает HTML письма.
// Если wrapperFile пуст, возвращается только тело.
func Compose(bodyFile string, bodyFields []Field, wrapperFile string, wrapperFields []Field) (string, error) {
	body, err := os.ReadFile(bodyFile)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	msg, err := Format(string(body), bodyFields)
	if err != nil {
		return "", fmt.Errorf("format body %s: %w", bodyFile, err)
	}
	if wrapperFile == "" {
		return msg, nil
	}

	wrapper, err := os.ReadFile(wrapperFile)
	if err != nil {
		return "", fmt.Errorf("read wrapper file: %w", err)
	}
	fields := append([]Field{HTML(msg)}, wrapperFields...)
	out, err := Format(string(wrapper), fields)
	if err != nil {
		return "", fmt.Errorf("format wrapper %s: %w", wrapperFile, err)
	}
	return out, nil
}

// FormatSubject подставляет поля в тему письма без санитайзера.
func FormatSubject(subject string, values ...string) string {
	fields := make([]Field, len(values))
	for i, v := range values {
		fields[i] = HTML(v)
	}
	out, err := Format(subject, fields)
	if err != nil {
		return subject
	}
	return out
}

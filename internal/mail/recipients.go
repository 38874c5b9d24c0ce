package mail

import (
	"fmt"
	"strings"

	"github.com/shaiso/rpabot/internal/excel"
)

// Колонки файла получателей.
const (
	colEnvironment   = "environment_level"
	colRecipientType = "recipient_type"
	colEmail         = "email_address"

	recipientsSheet = "base"
)

// RecipientBook — получатели из Excel-файла.
//
// Строка попадает в письмо, если её environment_level совпадает с
// окружением, а в колонке типа письма стоит TRUE/VERDADERO/1.
// recipient_type определяет поле: to, cc или bcc.
type RecipientBook struct {
	table *excel.Table
}

// LoadRecipients читает файл получателей (лист base, либо первый лист).
func LoadRecipients(path string) (*RecipientBook, error) {
	t, err := excel.Read(path, recipientsSheet)
	if err != nil {
		t, err = excel.Read(path, "")
		if err != nil {
			return nil, fmt.Errorf("read recipients file: %w", err)
		}
	}
	return NewRecipientBook(t)
}

// NewRecipientBook создаёт книгу из таблицы.
func NewRecipientBook(t *excel.Table) (*RecipientBook, error) {
	for _, col := range []string{colEnvironment, colRecipientType, colEmail} {
		if t.Column(col) < 0 {
			return nil, fmt.Errorf("recipients file misses column %q", col)
		}
	}
	return &RecipientBook{table: t}, nil
}

// Lookup возвращает получателей для окружения и типа письма.
func (b *RecipientBook) Lookup(environment, mailType string) (Recipients, error) {
	var r Recipients
	if b.table.Column(mailType) < 0 {
		return r, fmt.Errorf("%w: %s", ErrMailTypeNotFound, mailType)
	}

	for _, row := range b.table.Rows {
		if !strings.EqualFold(strings.TrimSpace(b.table.Value(row, colEnvironment)), environment) {
			continue
		}
		if !excel.IsTrue(b.table.Value(row, mailType)) {
			continue
		}
		addr := strings.TrimSpace(b.table.Value(row, colEmail))
		if addr == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(b.table.Value(row, colRecipientType))) {
		case "to":
			r.To = append(r.To, addr)
		case "cc":
			r.Cc = append(r.Cc, addr)
		case "bcc":
			r.Bcc = append(r.Bcc, addr)
		}
	}
	return r, nil
}

package mail

import "errors"

// Ошибки отправки.
var (
	// ErrNoRecipients — у письма нет ни одного получателя.
	ErrNoRecipients = errors.New("no recipients for email")

	// ErrMailTypeNotFound — в файле получателей нет колонки типа письма.
	ErrMailTypeNotFound = errors.New("mail type not found in recipients file")

	// ErrTemplateField — ошибка позиционного поля в шаблоне.
	ErrTemplateField = errors.New("invalid template field")

	// ErrNoTransport — транспорт не настроен.
	ErrNoTransport = errors.New("mail transport is not configured")
)

package mail

import "context"

// Message — готовое письмо.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	HTML        string
	Attachments []string
}

// Transport доставляет письма.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Recipients — получатели письма.
type Recipients struct {
	To  []string
	Cc  []string
	Bcc []string
}

// Empty возвращает true, если получателей нет.
func (r Recipients) Empty() bool {
	return len(r.To)+len(r.Cc)+len(r.Bcc) == 0
}

// Field — значение позиционного поля шаблона.
//
// Обычные значения очищаются HTML-санитайзером; Trusted-значения
// (например, таблицы, собранные самим ботом) подставляются как есть.
type Field struct {
	Value   string
	Trusted bool
}

// Text создаёт поле, которое будет очищено.
func Text(v string) Field { return Field{Value: v} }

// HTML создаёт доверенное поле.
func HTML(v string) Field { return Field{Value: v, Trusted: true} }

// HTMLs превращает строки в доверенные поля, которые вставляются как есть.
func HTMLs(values []string) []Field {
	out := make([]Field, len(values))
	for i, v := range values {
		out[i] = HTML(v)
	}
	return out
}

// Texts превращает строки в поля Text.
func Texts(values []string) []Field {
	out := make([]Field, len(values))
	for i, v := range values {
		out[i] = Text(v)
	}
	return out
}

// Request — запрос на отправку письма по шаблону.
type Request struct {
	// Subject — тема письма (уже отформатированная).
	Subject string

	// BodyFile — путь к шаблону тела.
	BodyFile string

	// BodyFields — позиционные поля тела.
	BodyFields []Field

	// WrapperFields — поля обёртки начиная с {1}; {0} — тело.
	WrapperFields []Field

	// MailType — колонка файла получателей. Используется, если Recipients пуст.
	MailType string

	// Recipients — явные получатели.
	Recipients Recipients

	// Attachments — пути к вложениям; отсутствующие файлы пропускаются.
	Attachments []string
}

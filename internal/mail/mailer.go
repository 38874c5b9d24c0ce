package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// TestPrefix добавляется к теме писем вне PRD.
const TestPrefix = "[TEST] "

// Mailer отправляет письма по шаблонам.
type Mailer struct {
	transport      Transport
	from           string
	wrapperFile    string
	recipientsFile string
	environment    string
	testEnv        bool
	logger         *slog.Logger

	bookOnce sync.Once
	book     *RecipientBook
	bookErr  error
}

// MailerConfig — параметры Mailer.
type MailerConfig struct {
	Transport      Transport
	From           string
	WrapperFile    string
	RecipientsFile string
	Environment    string
	// TestEnv включает префикс [TEST] в теме.
	TestEnv bool
	Logger  *slog.Logger
}

// NewMailer создаёт Mailer.
func NewMailer(cfg MailerConfig) *Mailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		transport:      cfg.Transport,
		from:           cfg.From,
		wrapperFile:    cfg.WrapperFile,
		recipientsFile: cfg.RecipientsFile,
		environment:    cfg.Environment,
		testEnv:        cfg.TestEnv,
		logger:         logger,
	}
}

// Send собирает письмо по шаблону и отправляет его.
func (m *Mailer) Send(ctx context.Context, req Request) error {
	if m.transport == nil {
		return ErrNoTransport
	}

	recipients := req.Recipients
	if recipients.Empty() && req.MailType != "" {
		r, err := m.lookup(req.MailType)
		if err != nil {
			return err
		}
		recipients = r
	}
	if recipients.Empty() {
		return fmt.Errorf("%w: %s", ErrNoRecipients, req.Subject)
	}

	html, err := Compose(req.BodyFile, req.BodyFields, m.wrapperFile, req.WrapperFields)
	if err != nil {
		return err
	}

	subject := req.Subject
	if m.testEnv {
		subject = TestPrefix + subject
	}

	msg := &Message{
		From:    m.from,
		To:      recipients.To,
		Cc:      recipients.Cc,
		Bcc:     recipients.Bcc,
		Subject: subject,
		HTML:    html,
	}
	for _, a := range req.Attachments {
		if _, err := os.Stat(a); err != nil {
			m.logger.Warn("attachment could not be found", "path", a)
			continue
		}
		msg.Attachments = append(msg.Attachments, a)
	}

	m.logger.Info("sending email",
		"subject", subject,
		"to", msg.To,
		"cc", msg.Cc,
		"bcc", msg.Bcc,
		"attachments", len(msg.Attachments),
	)
	if err := m.transport.Send(ctx, msg); err != nil {
		return err
	}
	m.logger.Info("email sent", "subject", subject)
	return nil
}

// lookup читает файл получателей один раз за жизнь Mailer.
func (m *Mailer) lookup(mailType string) (Recipients, error) {
	m.bookOnce.Do(func() {
		if m.recipientsFile == "" {
			m.bookErr = fmt.Errorf("%w: recipients file is not configured", ErrNoRecipients)
			return
		}
		m.book, m.bookErr = LoadRecipients(m.recipientsFile)
	})
	if m.bookErr != nil {
		return Recipients{}, m.bookErr
	}
	return m.book.Lookup(m.environment, mailType)
}

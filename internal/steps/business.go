package steps

import (
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/mail"
)

// businessFailure строит BusinessError с письмом по шаблону
// email.business_exception. Поля тела: имя процесса и сообщение.
func businessFailure(env *Env, message string, attachments ...string) error {
	tmpl := env.Config.Email.BusinessException
	meta := env.Config.Metadata

	mailType := tmpl.MailType
	if mailType == "" {
		mailType = "BUSINESS_EXCEPTION"
	}
	subject := tmpl.Subject
	if subject == "" {
		subject = "Business exception {0}"
	}

	return NewBusinessError(message, domain.BusinessPayload{
		BodyFile:    tmpl.BodyFile,
		Subject:     mail.FormatSubject(subject, meta.ProcessCode),
		MailType:    mailType,
		Attachments: attachments,
		BodyFields:  []string{meta.ProcessName, message},
	})
}

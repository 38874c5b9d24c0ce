package steps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shaiso/rpabot/internal/mail"
)

// SendExeReportName — имя шага отчёта об исполнении.
const SendExeReportName = "send_exe_report"

const defaultExeReportType = "EXECUTION_REPORT"

// SendExeReport отправляет отчёт об исполнении с worktray во вложении.
// Тема: email.exe_report.subject с полями {0} — код процесса,
// {1} — дата в формате dd-mm-yy.
type SendExeReport struct {
	env *Env
	now func() time.Time
}

// NewSendExeReport — Factory шага send_exe_report.
func NewSendExeReport(env *Env) (Step, error) {
	if env == nil || env.Config == nil {
		return nil, fmt.Errorf("%w: %s: env is required", ErrInvalidConfig, SendExeReportName)
	}
	if env.Mailer == nil {
		return nil, fmt.Errorf("%w: %s: mailer is required", ErrInvalidConfig, SendExeReportName)
	}
	return &SendExeReport{env: env, now: time.Now}, nil
}

func (s *SendExeReport) Name() string { return SendExeReportName }

func (s *SendExeReport) Execute(ctx context.Context) error {
	s.env.log(SendExeReportName).Info("----- Sending execution report -----")

	cfg := s.env.Config
	tmpl := cfg.Email.ExeReport
	if tmpl.BodyFile == "" {
		return Systemf("%w: email.exe_report.body_file is required", ErrInvalidConfig)
	}
	mailType := tmpl.MailType
	if mailType == "" {
		mailType = defaultExeReportType
	}

	var attachments []string
	if wt := cfg.Env().WorktrayFile; wt != "" {
		attachments = append(attachments, wt)
	}

	return s.env.Mailer.Send(ctx, mail.Request{
		Subject:     mail.FormatSubject(tmpl.Subject, cfg.Metadata.ProcessCode, s.now().Format("02-01-06")),
		BodyFile:    tmpl.BodyFile,
		BodyFields:  []mail.Field{mail.Text(cfg.Metadata.ProcessName)},
		MailType:    mailType,
		Recipients:  mail.Recipients{To: tmpl.Recipients},
		Attachments: attachments,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

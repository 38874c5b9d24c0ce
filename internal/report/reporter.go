package report

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/mail"
)

// Типы писем по умолчанию (колонки файла получателей).
const (
	MailSysExc     = "SYS_EXC_REPORT"
	MailSysExcUser = "SYS_EXC_REPORT_USER"
	MailMonitoring = "MONITORING_REPORT"
)

// Sender отправляет письма по шаблону.
type Sender interface {
	Send(ctx context.Context, req mail.Request) error
}

// Reporter отправляет письма о результате run.
type Reporter struct {
	cfg    *config.Config
	mailer Sender
	logger *slog.Logger
	now    func() time.Time
}

// New создаёт Reporter.
func New(cfg *config.Config, mailer Sender, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{cfg: cfg, mailer: mailer, logger: logger, now: time.Now}
}

// Report отправляет письмо об ошибке для FAILED и WARNING.
// Для остальных статусов ничего не делает. Никогда не паникует:
// все ошибки отправки логируются.
func (r *Reporter) Report(ctx context.Context, run *domain.Run) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("reporter panicked", "panic", v, "stack", string(debug.Stack()))
		}
	}()

	if run == nil || !run.Status.NeedsReport() {
		return
	}
	if r.mailer == nil {
		r.logger.Warn("mailer is not configured, skipping exception report", "status", run.Status)
		return
	}

	f := run.Failure
	if f == nil {
		f = &domain.FailureRecord{Kind: domain.FailureSystem, StepIndex: run.StepIndex, Message: "run finished without failure record"}
	}

	switch run.Status {
	case domain.RunStatusWarning:
		r.sendBusiness(ctx, f)
	case domain.RunStatusFailed:
		r.sendSystem(ctx, f)
		r.sendUserSystem(ctx)
	}
}

func (r *Reporter) sendBusiness(ctx context.Context, f *domain.FailureRecord) {
	r.logger.Info("----- Sending business exception -----")
	if f.Business == nil {
		r.logger.Error("business failure without mail payload", "message", f.Message)
		return
	}
	p := f.Business
	err := r.mailer.Send(ctx, mail.Request{
		Subject:     p.Subject,
		BodyFile:    p.BodyFile,
		BodyFields:  mail.HTMLs(p.BodyFields),
		MailType:    p.MailType,
		Attachments: p.Attachments,
	})
	if err != nil {
		r.logger.Error("could not send business exception", "error", err)
	}
}

func (r *Reporter) sendSystem(ctx context.Context, f *domain.FailureRecord) {
	r.logger.Info("----- Sending system exception -----")

	source := CheckLogs
	table := ""
	frames, err := ParseTrace(f.Trace)
	if err != nil {
		r.logger.Warn("could not parse exception trace", "error", err)
	} else {
		source = Source(frames)
		table = FramesTable(frames)
	}

	tmpl := r.cfg.Email.SysExcReport
	err = r.mailer.Send(ctx, mail.Request{
		Subject:  r.subject(tmpl.Subject, "System exception {0} {1}"),
		BodyFile: tmpl.BodyFile,
		BodyFields: []mail.Field{
			mail.Text(r.cfg.Metadata.ProcessName),
			mail.Text(fmt.Sprintf("%s (state %d, attempts %d)", f.Message, f.StepIndex, f.Attempts)),
			mail.Text(source),
			mail.HTML(table),
		},
		MailType:   orDefault(tmpl.MailType, MailSysExc),
		Recipients: mail.Recipients{To: tmpl.Recipients},
	})
	if err != nil {
		r.logger.Error("could not send system exception", "error", err)
	}
}

func (r *Reporter) sendUserSystem(ctx context.Context) {
	if !r.cfg.Email.EnableClientSysExc {
		r.logger.Warn("send user exception is disabled by config")
		return
	}
	r.logger.Info("----- Sending user system exception -----")

	tmpl := r.cfg.Email.SysExcReportUser
	err := r.mailer.Send(ctx, mail.Request{
		Subject:    r.subject(tmpl.Subject, "System exception {0} {1}"),
		BodyFile:   tmpl.BodyFile,
		BodyFields: []mail.Field{mail.Text(r.cfg.Metadata.ProcessName)},
		MailType:   orDefault(tmpl.MailType, MailSysExcUser),
		Recipients: mail.Recipients{To: tmpl.Recipients},
	})
	if err != nil {
		r.logger.Error("could not send user system exception", "error", err)
	}
}

// Monitoring отправляет мониторинговое письмо со сводкой run.
// Вложения: последний лог-файл и JSON-сводка.
func (r *Reporter) Monitoring(ctx context.Context, s domain.RunSummary, summaryFile, logFile string) error {
	r.logger.Info("--- Sending monitoring report ---")
	if r.mailer == nil {
		return mail.ErrNoTransport
	}

	tmpl := r.cfg.Email.MonitoringReport
	var attachments []string
	for _, a := range []string{logFile, summaryFile} {
		if a != "" {
			attachments = append(attachments, a)
		}
	}
	return r.mailer.Send(ctx, mail.Request{
		Subject:     mail.FormatSubject(orDefault(tmpl.Subject, "Monitoring {0} {1}"), r.cfg.Metadata.ProcessCode, r.now().Format(SummaryFileLayout)),
		BodyFile:    tmpl.BodyFile,
		BodyFields:  []mail.Field{mail.Text(r.cfg.Metadata.ProcessCode), mail.HTML(SummaryTable(s))},
		MailType:    orDefault(tmpl.MailType, MailMonitoring),
		Recipients:  mail.Recipients{To: tmpl.Recipients},
		Attachments: attachments,
	})
}

func (r *Reporter) subject(tmpl, def string) string {
	return mail.FormatSubject(orDefault(tmpl, def), r.cfg.Metadata.ProcessCode, r.now().Format("02-01-06"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

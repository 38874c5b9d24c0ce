package steps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/shaiso/rpabot/internal/excel"
	"github.com/shaiso/rpabot/internal/mail"
)

// DelegatedFlowName — имя шага внешнего desktop-потока.
const DelegatedFlowName = "delegated_flow"

const (
	padConfigFile = "pad_config.xlsx"
	padFlagFile   = "pad_flow_finished.log"
	padTriggerTpl = "pad_trigger_body.html"

	markerBusiness = "[BE]"
	markerError    = "[ERROR]"
)

// DelegatedFlow передаёт работу внешнему desktop-потоку и ждёт его
// завершения.
//
// Шаг пишет книгу параметров (key/value), отправляет письмо-триггер и
// раз в секунду проверяет флаг-файл. Флаг-файл — лог потока в UTF-16:
// строки с [BE] дают BusinessError, строки с [ERROR] — system failure.
// Если флаг не появился за pad_timeout_minutes, шаг завершается
// SystemError с ErrStepTimeout.
type DelegatedFlow struct {
	env     *Env
	folder  string
	timeout time.Duration
	every   time.Duration
	params  map[string]string
}

// NewDelegatedFlow — Factory шага delegated_flow.
func NewDelegatedFlow(env *Env) (Step, error) {
	if env == nil || env.Config == nil {
		return nil, fmt.Errorf("%w: %s: env is required", ErrInvalidConfig, DelegatedFlowName)
	}
	cfg := env.Config
	folder := cfg.Env().PadFolder
	if folder == "" {
		folder = filepath.Join(cfg.Framework.ProcessData, "pad")
	}
	return &DelegatedFlow{
		env:     env,
		folder:  folder,
		timeout: cfg.PadTimeout(),
		every:   time.Second,
		params: map[string]string{
			"PROCESS_CODE":  cfg.Metadata.ProcessCode,
			"ENVIRONMENT":   cfg.Environment(),
			"WORKTRAY_FILE": cfg.Env().WorktrayFile,
			"OUTPUT":        cfg.Framework.Output,
		},
	}, nil
}

func (s *DelegatedFlow) Name() string { return DelegatedFlowName }

// FlagFile возвращает путь флаг-файла, который пишет внешний поток.
func (s *DelegatedFlow) FlagFile() string {
	return filepath.Join(s.folder, padFlagFile)
}

func (s *DelegatedFlow) Execute(ctx context.Context) error {
	log := s.env.log(DelegatedFlowName)

	if err := os.RemoveAll(s.folder); err != nil {
		return Systemf("clean pad folder: %w", err)
	}
	if err := os.MkdirAll(s.folder, 0o755); err != nil {
		return Systemf("create pad folder: %w", err)
	}

	configPath, err := s.writeConfig()
	if err != nil {
		return err
	}
	log.Info("pad config written", "path", configPath, "parameters", len(s.params)+1)

	if err := s.trigger(ctx, configPath); err != nil {
		return Systemf("send pad trigger: %w", err)
	}

	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.readLog()
}

func (s *DelegatedFlow) writeConfig() (string, error) {
	t := &excel.Table{Header: []string{"key", "value"}}
	t.Rows = append(t.Rows, []string{"FLOW_FINISHED_LOG_FILE_PATH", s.FlagFile()})
	for _, k := range sortedKeys(s.params) {
		t.Rows = append(t.Rows, []string{k, s.params[k]})
	}
	path := filepath.Join(s.folder, padConfigFile)
	if err := excel.Write(path, "Sheet1", t); err != nil {
		return "", Systemf("write pad config: %w", err)
	}
	return path, nil
}

func (s *DelegatedFlow) trigger(ctx context.Context, configPath string) error {
	if s.env.Mailer == nil {
		return mail.ErrNoTransport
	}
	tmpl := s.env.Config.Email.PadTrigger

	body := tmpl.BodyFile
	if body == "" {
		body = filepath.Join(s.folder, padTriggerTpl)
		if err := os.WriteFile(body, []byte("{0}"), 0o644); err != nil {
			return err
		}
	}
	subject := tmpl.Subject
	if subject == "" {
		subject = "EJECUTAR PROCESO [{0}]"
	}

	return s.env.Mailer.Send(ctx, mail.Request{
		Subject:    mail.FormatSubject(strings.ToUpper(subject), s.env.Config.Metadata.ProcessCode),
		BodyFile:   body,
		BodyFields: []mail.Field{mail.Text(configPath + "end_config")},
		MailType:   tmpl.MailType,
		Recipients: mail.Recipients{To: tmpl.Recipients},
	})
}

func (s *DelegatedFlow) wait(ctx context.Context) error {
	log := s.env.log(DelegatedFlowName)
	log.Info("waiting for the pad flow to finish", "flag_file", s.FlagFile(), "limit", s.timeout)

	start := time.Now()
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	lastMinute := -1
	for {
		if _, err := os.Stat(s.FlagFile()); err == nil {
			log.Info("flag file found", "elapsed", time.Since(start).Round(time.Second))
			return nil
		}
		if m := int(time.Since(start).Minutes()); m != lastMinute {
			lastMinute = m
			log.Info("minutes waiting", "minutes", m)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			log.Error("pad flow not finished")
			return Systemf("%w: pad flow did not finish in %s", ErrStepTimeout, s.timeout)
		case <-ticker.C:
		}
	}
}

// readLog разбирает лог потока. Бизнес-исключения важнее ошибок.
func (s *DelegatedFlow) readLog() error {
	log := s.env.log(DelegatedFlowName)

	lines, err := ReadUTF16Lines(s.FlagFile())
	if err != nil {
		return Systemf("read pad log: %w", err)
	}

	var be, errs []string
	for _, line := range lines {
		switch {
		case strings.Contains(line, markerBusiness):
			log.Warn("PAD: " + line)
			be = append(be, line)
		case strings.Contains(line, markerError):
			log.Error("PAD: " + line)
			errs = append(errs, line)
		default:
			log.Info("PAD: " + line)
		}
	}

	if len(be) > 0 {
		return businessFailure(s.env, strings.Join(be, ";"))
	}
	if len(errs) > 0 {
		return Systemf("errors found in pad flow: %d\n%s", len(errs), strings.Join(errs, ";"))
	}
	return nil
}

// ReadUTF16Lines читает файл в UTF-16 (BOM определяет порядок байт,
// по умолчанию little endian) и возвращает непустые строки.
func ReadUTF16Lines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	r := transform.NewReader(bytes.NewReader(data), dec)

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) > 1 {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

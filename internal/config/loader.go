package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath — путь к конфигурации по умолчанию.
const DefaultPath = "config.yaml"

// Load читает YAML-конфигурацию.
//
// Перед разбором загружается .env из каталога конфигурации (если есть)
// и подставляются переменные окружения ${VAR}. Затем выставляются
// значения по умолчанию, раскрываются теги путей и выполняется Validate.
func Load(path string) (*Config, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config dir: %w", err)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, dir)
}

// Parse разбирает конфигурацию из памяти. dir — база для путей "../".
func Parse(data []byte, dir string) (*Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.dir = dir

	cfg.setDefaults()
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	c.Metadata.Environment = strings.ToUpper(c.Metadata.Environment)
	if c.Metadata.Environment == "" {
		c.Metadata.Environment = EnvDEV
	}

	f := &c.Framework
	if f.ProcessData == "" {
		f.ProcessData = "process_data"
	}
	if f.Output == "" {
		f.Output = "output"
	}
	if f.LogFolder == "" {
		f.LogFolder = "logs"
	}
	if f.MaxTries == 0 {
		f.MaxTries = 3
	}
	if f.PollInterval == 0 {
		f.PollInterval = 20 * time.Millisecond
	}
	if f.RetryBackoff == "" {
		f.RetryBackoff = "none"
	}
	if f.HistoryDB == "" {
		f.HistoryDB = filepath.Join(f.LogFolder, "history.db")
	}

	if c.Calendar.YearRange == 0 {
		c.Calendar.YearRange = 1
	}
	if c.Calendar.HolidayURL == "" {
		c.Calendar.HolidayURL = "https://www.officeholidays.com/countries/chile/%d"
	}

	for name, env := range c.Environments {
		if env.PadTimeoutMinutes == 0 {
			env.PadTimeoutMinutes = 30
		}
		if env.InputSheet == "" {
			env.InputSheet = "Sheet1"
		}
		c.Environments[name] = env
	}
}

// resolvePaths раскрывает теги путей. Сначала базовые каталоги
// framework, затем всё, что может на них ссылаться.
func (c *Config) resolvePaths() {
	f := &c.Framework
	f.ProcessData = c.ResolvePath(f.ProcessData)
	f.Output = c.ResolvePath(f.Output)
	f.LogFolder = c.ResolvePath(f.LogFolder)
	f.StopFile = c.ResolvePath(f.StopFile)
	f.HistoryDB = c.ResolvePath(f.HistoryDB)

	e := &c.Email
	e.WrapperFile = c.ResolvePath(e.WrapperFile)
	e.RecipientsFile = c.ResolvePath(e.RecipientsFile)
	for _, t := range []*MailTemplate{&e.SysExcReport, &e.SysExcReportUser, &e.MonitoringReport, &e.ExeReport, &e.PadTrigger, &e.BusinessException} {
		t.BodyFile = c.ResolvePath(t.BodyFile)
	}

	for name, env := range c.Environments {
		env.InputFile = c.ResolvePath(env.InputFile)
		env.WorktrayFile = c.ResolvePath(env.WorktrayFile)
		env.WorktrayTemplate = c.ResolvePath(env.WorktrayTemplate)
		env.PadFolder = c.ResolvePath(env.PadFolder)
		c.Environments[name] = env
	}
}

// ResolvePath раскрывает теги {PROCESS_DATA}, {OUTPUT}, {USER_PROFILE}
// и относительные пути "../" и "./" от каталога конфигурации.
func (c *Config) ResolvePath(p string) string {
	if p == "" {
		return ""
	}
	home, _ := os.UserHomeDir()
	r := strings.NewReplacer(
		"{USER_PROFILE}", home,
		"{PROCESS_DATA}", c.Framework.ProcessData,
		"{OUTPUT}", c.Framework.Output,
	)
	p = filepath.FromSlash(r.Replace(p))
	if !filepath.IsAbs(p) && c.dir != "" {
		p = filepath.Join(c.dir, p)
	}
	return filepath.Clean(p)
}

// Validate проверяет обязательные поля.
func (c *Config) Validate() error {
	if c.Metadata.ProcessCode == "" {
		return &ValidationError{Field: "metadata.process_code", Message: "is required"}
	}
	if !slices.Contains([]string{EnvDEV, EnvQAS, EnvPRD}, c.Environment()) {
		return &ValidationError{Field: "metadata.environment", Message: fmt.Sprintf("must be DEV, QAS or PRD, got %q", c.Metadata.Environment)}
	}
	if _, ok := c.Environments[c.Environment()]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEnvironment, c.Environment())
	}
	if c.Framework.MaxTries < 1 {
		return &ValidationError{Field: "framework.max_tries", Message: "must be >= 1"}
	}
	switch c.Framework.RetryBackoff {
	case "none", "fixed", "exponential":
	default:
		return &ValidationError{Field: "framework.retry_backoff", Message: fmt.Sprintf("unknown backoff %q", c.Framework.RetryBackoff)}
	}
	if c.Framework.KillProcesses && len(c.Framework.KillProcessList) == 0 {
		return &ValidationError{Field: "framework.kill_process_list", Message: "is empty while kill_processes is on"}
	}
	return nil
}

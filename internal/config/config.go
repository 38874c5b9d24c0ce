package config

import (
	"strings"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
)

// Окружения процесса.
const (
	EnvDEV = "DEV"
	EnvQAS = "QAS"
	EnvPRD = "PRD"
)

// Config — конфигурация бота.
//
// Создаётся один раз через Load и дальше передаётся по указателю в
// конструкторы компонентов. После Load структура не изменяется.
type Config struct {
	Metadata     domain.Metadata        `yaml:"metadata"`
	Framework    Framework              `yaml:"framework"`
	Global       map[string]string      `yaml:"global"`
	Email        Email                  `yaml:"email"`
	Environments map[string]Environment `yaml:"environments"`
	Monitoring   Monitoring             `yaml:"monitoring"`
	Calendar     Calendar               `yaml:"calendar"`

	// dir — каталог файла конфигурации, база для путей "../".
	dir string
}

// Framework — параметры движка.
type Framework struct {
	// ProcessData — временный каталог run, очищается перед запуском.
	ProcessData string `yaml:"process_data"`

	// Output — каталог результатов.
	Output string `yaml:"output"`

	// LogFolder — каталог лог-файлов.
	LogFolder string `yaml:"log_folder"`

	// MaxTries — максимум попыток одного шага (≥ 1).
	MaxTries int `yaml:"max_tries"`

	// KillProcesses — завершать процессы из KillProcessList при ошибках
	// и в начале/конце run.
	KillProcesses   bool     `yaml:"kill_processes"`
	KillProcessList []string `yaml:"kill_process_list"`

	// DeleteProcessDataBeforeRun — очищать ProcessData перед запуском.
	// По умолчанию true.
	DeleteProcessDataBeforeRun *bool `yaml:"delete_process_data_before_run"`

	// CancelPoll — включает опрос источников отмены.
	CancelPoll bool `yaml:"cancel_poll"`

	// PollInterval — период опроса (по умолчанию 20ms).
	PollInterval time.Duration `yaml:"poll_interval"`

	// StopFile — появление этого файла останавливает run.
	StopFile string `yaml:"stop_file"`

	// RetryBackoff — "none", "fixed" или "exponential".
	RetryBackoff  string        `yaml:"retry_backoff"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`

	// StatusAddr — адрес HTTP-сервера статуса; пусто = выключен.
	StatusAddr string `yaml:"status_addr"`

	// HistoryDB — путь к SQLite-файлу локальной истории.
	HistoryDB string `yaml:"history_db"`
}

// Email — параметры писем.
type Email struct {
	SMTP               SMTP         `yaml:"smtp"`
	From               string       `yaml:"from"`
	WrapperFile        string       `yaml:"wrapper_file"`
	RecipientsFile     string       `yaml:"recipients_file"`
	EnableClientSysExc bool         `yaml:"enable_client_sys_exc"`
	SysExcReport       MailTemplate `yaml:"sys_exc_report"`
	SysExcReportUser   MailTemplate `yaml:"sys_exc_report_user"`
	MonitoringReport   MailTemplate `yaml:"monitoring_report"`
	ExeReport          MailTemplate `yaml:"exe_report"`
	PadTrigger         MailTemplate `yaml:"pad_trigger"`

	// BusinessException — письмо о бизнес-исключении по умолчанию.
	// Шаги могут переопределить тему и тело в payload.
	BusinessException MailTemplate `yaml:"business_exception"`
}

// MailTemplate — шаблон письма.
//
// Subject может содержать позиционные поля {0}, {1}. Если Recipients
// пуст, получатели берутся из файла получателей по MailType.
type MailTemplate struct {
	Subject    string   `yaml:"subject"`
	BodyFile   string   `yaml:"body_file"`
	MailType   string   `yaml:"mail_type"`
	Recipients []string `yaml:"recipients"`
}

// SMTP — параметры почтового сервера.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TLS — "none", "starttls" или "ssl".
	TLS string `yaml:"tls"`
}

// Environment — параметры конкретного окружения.
type Environment struct {
	ExecutionYearOffset  int `yaml:"execution_year_offset"`
	ExecutionMonthOffset int `yaml:"execution_month_offset"`
	ExecutionDayOffset   int `yaml:"execution_day_offset"`

	// PadTimeoutMinutes — максимальное ожидание внешнего потока.
	PadTimeoutMinutes int `yaml:"pad_timeout_minutes"`

	InputFile        string `yaml:"input_file"`
	InputSheet       string `yaml:"input_sheet"`
	InputColumns     int    `yaml:"input_columns"`
	WorktrayFile     string `yaml:"worktray_file"`
	WorktrayTemplate string `yaml:"worktray_template"`

	APIBaseURL string `yaml:"api_base_url"`
	APIToken   string `yaml:"api_token"`
	APIListID  string `yaml:"api_list_id"`

	PadFolder string `yaml:"pad_folder"`
}

// Monitoring — внешние системы мониторинга. Пустые поля отключают систему.
type Monitoring struct {
	DatabaseURL    string      `yaml:"database_url"`
	RabbitMQURL    string      `yaml:"rabbitmq_url"`
	RedisURL       string      `yaml:"redis_url"`
	PushgatewayURL string      `yaml:"pushgateway_url"`
	ObjectStore    ObjectStore `yaml:"object_store"`
}

// ObjectStore — S3-совместимое хранилище для логов и отчётов.
type ObjectStore struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Calendar — параметры календаря праздников.
type Calendar struct {
	HolidayURL string `yaml:"holiday_url"`
	YearRange  int    `yaml:"year_range"`
	Headless   *bool  `yaml:"headless"`
}

// Env возвращает секцию текущего окружения.
func (c *Config) Env() Environment {
	return c.Environments[c.Environment()]
}

// Environment возвращает код окружения в верхнем регистре.
func (c *Config) Environment() string {
	return strings.ToUpper(c.Metadata.Environment)
}

// IsProduction возвращает true для PRD.
func (c *Config) IsProduction() bool {
	return c.Environment() == EnvPRD
}

// IsTest возвращает true для DEV и QAS: письма получают префикс [TEST].
func (c *Config) IsTest() bool {
	return !c.IsProduction()
}

// MonitoringEnabled возвращает true для QAS и PRD: логи и сводки
// выгружаются во внешний мониторинг.
func (c *Config) MonitoringEnabled() bool {
	env := c.Environment()
	return env == EnvQAS || env == EnvPRD
}

// DeleteScratch возвращает значение delete_process_data_before_run.
func (c *Config) DeleteScratch() bool {
	if c.Framework.DeleteProcessDataBeforeRun == nil {
		return true
	}
	return *c.Framework.DeleteProcessDataBeforeRun
}

// PadTimeout возвращает лимит ожидания внешнего потока.
func (c *Config) PadTimeout() time.Duration {
	return time.Duration(c.Env().PadTimeoutMinutes) * time.Minute
}

// Headless возвращает режим браузера для календаря (по умолчанию true).
func (c *Config) Headless() bool {
	if c.Calendar.Headless == nil {
		return true
	}
	return *c.Calendar.Headless
}

// Dir возвращает каталог файла конфигурации.
func (c *Config) Dir() string {
	return c.dir
}

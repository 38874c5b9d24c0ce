package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shaiso/rpabot/internal/calendar"
	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/telemetry"
	"github.com/shaiso/rpabot/internal/worker"
)

// Default configuration values.
const (
	defaultPollInterval    = 20 * time.Millisecond
	defaultTeardownTimeout = 2 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
)

// HistoryStore — локальная история запусков.
type HistoryStore interface {
	AddAttempt(ctx context.Context, a domain.StepAttempt) error
	AddRun(ctx context.Context, run *domain.Run, s domain.RunSummary) error
}

// RunStore — БД мониторинга.
type RunStore interface {
	Save(ctx context.Context, run *domain.Run, s domain.RunSummary, attempts []domain.StepAttempt) error
}

// EventPublisher — публикация событий run.
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, run *domain.Run) error
	PublishRunFinished(ctx context.Context, run *domain.Run) error
	PublishAttempt(ctx context.Context, processCode string, a domain.StepAttempt) error
}

// Uploader — выгрузка лога и сводки в объектное хранилище.
type Uploader interface {
	Upload(ctx context.Context, processCode, runID string, at time.Time, files ...string) ([]string, error)
}

// Reporter — отчёт об ошибке и письмо мониторинга.
type Reporter interface {
	Report(ctx context.Context, run *domain.Run)
	Monitoring(ctx context.Context, s domain.RunSummary, summaryFile, logFile string) error
}

// Supervisor выполняет один run.
//
// Секвенсор работает в отдельной горутине, супервизор в текущей
// опрашивает его с периодом PollInterval и передаёт запросы остановки.
type Supervisor struct {
	cfg   *config.Config
	table *steps.Table

	killer   worker.ProcessKiller
	mailer   steps.Mailer
	reporter Reporter
	history  HistoryStore
	runs     RunStore
	events   EventPublisher
	uploader Uploader
	metrics  *telemetry.Metrics
	holidays calendar.Fetcher
	sources  []StopSource

	logFile  string
	hostname string
	now      func() time.Time

	// Lifecycle
	logger *slog.Logger
	mu     sync.RWMutex
	worker *worker.Worker
}

// Config — зависимости Supervisor. Обязательны только Config и Table,
// остальные компоненты отключаются, если не заданы.
type Config struct {
	Config *config.Config
	Table  *steps.Table

	Killer   worker.ProcessKiller
	Mailer   steps.Mailer
	Reporter Reporter

	History  HistoryStore
	Runs     RunStore
	Events   EventPublisher
	Uploader Uploader
	Metrics  *telemetry.Metrics

	// Holidays — источник праздников для обновления календаря.
	Holidays calendar.Fetcher

	// StopSources опрашиваются, если включён framework.cancel_poll.
	StopSources []StopSource

	// LogFile — лог-файл run; выгружается и прикладывается к письму мониторинга.
	LogFile string

	Logger *slog.Logger
}

// New создаёт Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Config == nil {
		return nil, ErrNoConfig
	}
	if cfg.Table == nil {
		return nil, ErrNoTable
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hostname, _ := os.Hostname()

	return &Supervisor{
		cfg:      cfg.Config,
		table:    cfg.Table,
		killer:   cfg.Killer,
		mailer:   cfg.Mailer,
		reporter: cfg.Reporter,
		history:  cfg.History,
		runs:     cfg.Runs,
		events:   cfg.Events,
		uploader: cfg.Uploader,
		metrics:  cfg.Metrics,
		holidays: cfg.Holidays,
		sources:  cfg.StopSources,
		logFile:  cfg.LogFile,
		hostname: hostname,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Result — итог run.
type Result struct {
	Run         *domain.Run
	Summary     domain.RunSummary
	SummaryFile string
}

// Run выполняет run, начиная с шага startStep.
//
// Отмена ctx (например, по SIGINT) запрашивает кооперативную остановку:
// текущий шаг доработает, run завершится со статусом STOPPED.
// Возвращённая ошибка означает сбой подготовки или панику супервизора;
// результат run при этом всё равно заполнен.
func (s *Supervisor) Run(ctx context.Context, startStep int) (res *Result, err error) {
	start := s.now()
	run := domain.NewRun(s.cfg.Metadata.ProcessCode, s.cfg.Environment(), startStep, s.table.Count())
	logger := telemetry.WithRunID(s.logger, run.ID.String())
	state := &runState{
		processCode: run.ProcessCode,
		metrics:     s.metrics,
		history:     s.history,
		publisher:   s.events,
		logger:      logger,
	}

	defer func() {
		if v := recover(); v != nil {
			logger.Error("supervisor panic", "panic", v)
			err = fmt.Errorf("%w: %v", ErrSupervisorPanic, v)
		}
		res = s.teardown(ctx, run, state, start, err)
	}()

	if err := s.prepare(ctx); err != nil {
		return nil, err
	}

	env, err := s.stepEnv(logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrepare, err)
	}

	w := worker.New(worker.Config{
		Table: s.table,
		Env:   env,
		Policy: worker.RetryPolicy{
			MaxTries:     s.cfg.Framework.MaxTries,
			Backoff:      s.cfg.Framework.RetryBackoff,
			InitialDelay: s.cfg.Framework.RetryDelay,
			MaxDelay:     s.cfg.Framework.MaxRetryDelay,
		},
		Killer:        s.killer,
		KillProcesses: s.cfg.Framework.KillProcesses,
		KillList:      s.cfg.Framework.KillProcessList,
		Observer:      state,
		Logger:        s.logger,
	})
	s.mu.Lock()
	s.worker = w
	s.mu.Unlock()

	if s.events != nil {
		if err := s.events.PublishRunStarted(ctx, run); err != nil {
			logger.Warn("failed to publish run.started", "error", err)
		}
	}
	if err := w.Start(ctx, run); err != nil {
		return nil, err
	}
	s.supervise(ctx, w)
	return nil, nil
}

// Snapshot возвращает копию текущего run (nil до запуска секвенсора).
func (s *Supervisor) Snapshot() *domain.Run {
	s.mu.RLock()
	w := s.worker
	s.mu.RUnlock()
	if w == nil {
		return nil
	}
	return w.Snapshot()
}

// Table возвращает таблицу шагов.
func (s *Supervisor) Table() *steps.Table {
	return s.table
}

// supervise опрашивает секвенсор, пока тот жив.
func (s *Supervisor) supervise(ctx context.Context, w *worker.Worker) {
	interval := s.cfg.Framework.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cancelled := ctx.Done()
	for w.IsAlive() {
		select {
		case <-w.Done():
			return
		case <-cancelled:
			s.logger.Warn("cancellation signal received")
			w.Stop()
			cancelled = nil
		case <-ticker.C:
			if !w.IsStopped() && s.stopRequested(ctx) {
				w.Stop()
			}
		}
	}
}

// stopRequested опрашивает источники отмены.
func (s *Supervisor) stopRequested(ctx context.Context) bool {
	if !s.cfg.Framework.CancelPoll {
		return false
	}
	for _, src := range s.sources {
		ok, err := src.Requested(ctx)
		if err != nil {
			s.logger.Debug("stop source check failed", "source", src.Name(), "error", err)
			continue
		}
		if ok {
			s.logger.Warn("stop requested", "source", src.Name())
			if a, ok := src.(Acknowledger); ok {
				if err := a.Acknowledge(ctx); err != nil {
					s.logger.Warn("failed to acknowledge stop", "source", src.Name(), "error", err)
				}
			}
			return true
		}
	}
	return false
}

// prepare завершает зависшие процессы и готовит каталоги run.
// Процессы завершаются до очистки, чтобы они отпустили файлы в scratch.
func (s *Supervisor) prepare(ctx context.Context) error {
	f := s.cfg.Framework
	s.kill(ctx)
	if s.cfg.DeleteScratch() {
		if err := os.RemoveAll(f.ProcessData); err != nil {
			return fmt.Errorf("%w: remove %s: %w", ErrPrepare, f.ProcessData, err)
		}
	}
	for _, dir := range []string{f.ProcessData, f.Output} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrPrepare, dir, err)
		}
	}

	if s.holidays != nil {
		year := s.now().Year()
		_, err := calendar.EnsureHolidays(ctx, calendar.HolidayPath(s.cfg), year, s.cfg.Calendar.YearRange, s.holidays, s.logger)
		if err != nil {
			s.logger.Warn("failed to refresh holidays", "error", err)
		}
	}
	return nil
}

// stepEnv собирает окружение шагов.
func (s *Supervisor) stepEnv(logger *slog.Logger) (*steps.Env, error) {
	date, err := calendar.New(s.cfg, calendar.Options{})
	if err != nil {
		return nil, fmt.Errorf("robot date: %w", err)
	}
	logger.Info("robot date", "date", date.String())
	return &steps.Env{
		Config: s.cfg,
		Date:   date,
		Mailer: s.mailer,
		HTTP:   &http.Client{Timeout: defaultHTTPTimeout},
		Logger: logger,
	}, nil
}

// kill завершает процессы из конфигурации. Ошибки только логируются.
func (s *Supervisor) kill(ctx context.Context) {
	f := s.cfg.Framework
	if !f.KillProcesses || s.killer == nil || len(f.KillProcessList) == 0 {
		return
	}
	if err := s.killer.Kill(ctx, f.KillProcessList); err != nil {
		s.logger.Warn("failed to kill processes", "processes", f.KillProcessList, "error", err)
	}
}

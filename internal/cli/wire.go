package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/rpabot/internal/api"
	"github.com/shaiso/rpabot/internal/calendar"
	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/mail"
	"github.com/shaiso/rpabot/internal/mq"
	"github.com/shaiso/rpabot/internal/orchestrator"
	"github.com/shaiso/rpabot/internal/procs"
	"github.com/shaiso/rpabot/internal/repo"
	"github.com/shaiso/rpabot/internal/report"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/storage"
	"github.com/shaiso/rpabot/internal/telemetry"
)

// bot — собранный супервизор и ресурсы, которые нужно закрыть.
type bot struct {
	supervisor *orchestrator.Supervisor
	server     *api.Server
	closers    []func() error
	logger     *slog.Logger
}

// Close освобождает ресурсы в обратном порядке.
func (b *bot) Close(ctx context.Context) {
	if b.server != nil {
		if err := b.server.Shutdown(ctx); err != nil {
			b.logger.Warn("status server shutdown failed", "error", err)
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.logger.Warn("failed to release resource", "error", err)
		}
	}
}

// buildBot собирает зависимости супервизора по конфигурации.
//
// Внешние системы мониторинга необязательны: если подключение не
// удалось, компонент отключается с предупреждением и run продолжается.
func buildBot(ctx context.Context, cfg *config.Config, logger *slog.Logger, logFile string) (*bot, error) {
	b := &bot{logger: logger}
	metrics := telemetry.NewMetrics()

	var transport mail.Transport
	if cfg.Email.SMTP.Host != "" {
		transport = mail.NewSMTPTransport(cfg.Email.SMTP)
	} else {
		logger.Warn("smtp is not configured, emails will not be sent")
	}
	mailer := mail.NewMailer(mail.MailerConfig{
		Transport:      transport,
		From:           cfg.Email.From,
		WrapperFile:    cfg.Email.WrapperFile,
		RecipientsFile: cfg.Email.RecipientsFile,
		Environment:    cfg.Environment(),
		TestEnv:        cfg.IsTest(),
		Logger:         logger,
	})

	scfg := orchestrator.Config{
		Config:   cfg,
		Table:    steps.DefaultTable(),
		Killer:   procs.NewKiller(logger),
		Mailer:   mailer,
		Reporter: report.New(cfg, mailer, logger),
		Metrics:  metrics,
		Holidays: &calendar.BrowserFetcher{URL: cfg.Calendar.HolidayURL, Headless: cfg.Headless()},
		LogFile:  logFile,
		Logger:   logger,
	}

	history, err := repo.OpenHistory(cfg.Framework.HistoryDB)
	if err != nil {
		logger.Warn("local history disabled", "error", err)
	} else {
		scfg.History = history
		b.closers = append(b.closers, history.Close)
	}

	if cfg.MonitoringEnabled() {
		if runs, closeFn := connectMonitoringDB(ctx, cfg, logger); runs != nil {
			scfg.Runs = runs
			b.closers = append(b.closers, closeFn)
		}
		if cfg.Monitoring.ObjectStore.Endpoint != "" {
			uploader, err := storage.New(cfg.Monitoring.ObjectStore, logger)
			if err != nil {
				logger.Warn("object store disabled", "error", err)
			} else {
				scfg.Uploader = uploader
			}
		}
	}

	if cfg.Monitoring.RabbitMQURL != "" {
		if pub, closeFn := connectEvents(ctx, cfg, logger); pub != nil {
			scfg.Events = pub
			b.closers = append(b.closers, closeFn)
		}
	}

	if cfg.Framework.StopFile != "" {
		scfg.StopSources = append(scfg.StopSources, orchestrator.StopFile{Path: cfg.Framework.StopFile})
	}
	if cfg.Monitoring.RedisURL != "" {
		client, err := orchestrator.DialRedis(ctx, cfg.Monitoring.RedisURL)
		if err != nil {
			logger.Warn("redis stop source disabled", "error", err)
		} else {
			scfg.StopSources = append(scfg.StopSources, orchestrator.NewRedisStop(client, cfg.Metadata.ProcessCode, 0))
			b.closers = append(b.closers, client.Close)
		}
	}

	var handler *api.Handler
	status := &lazyStatus{}
	if cfg.Framework.StatusAddr != "" {
		handler = api.NewHandler(api.Config{
			Status:  status,
			History: historyReader(history),
			Metrics: metrics.Handler(),
			Logger:  logger,
		})
		scfg.StopSources = append(scfg.StopSources, handler)
	}

	supervisor, err := orchestrator.New(scfg)
	if err != nil {
		b.Close(ctx)
		return nil, err
	}
	b.supervisor = supervisor
	status.s = supervisor

	if handler != nil {
		srv, err := api.Listen(cfg.Framework.StatusAddr, handler)
		if err != nil {
			logger.Warn("status server disabled", "error", err)
		} else {
			srv.Serve()
			b.server = srv
		}
	}
	return b, nil
}

// connectMonitoringDB подключает БД мониторинга и применяет миграции.
func connectMonitoringDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (orchestrator.RunStore, func() error) {
	pool, err := repo.NewPool(ctx, cfg.Monitoring.DatabaseURL)
	if err != nil {
		if !errors.Is(err, repo.ErrNotConfigured) {
			logger.Warn("monitoring database disabled", "error", err)
		}
		return nil, nil
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Warn("monitoring database disabled", "error", err)
		pool.Close()
		return nil, nil
	}
	return repo.NewRunRepo(pool), func() error {
		pool.Close()
		return nil
	}
}

// connectEvents подключает RabbitMQ и объявляет топологию.
func connectEvents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (orchestrator.EventPublisher, func() error) {
	conn, err := mq.Dial(cfg.Monitoring.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("event publishing disabled", "error", err)
		return nil, nil
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("event publishing disabled", "error", err)
		_ = conn.Close()
		return nil, nil
	}
	return mq.NewPublisher(conn, logger), conn.Close
}

// historyReader не даёт nil-указателю попасть в интерфейс.
func historyReader(h *repo.HistoryStore) api.History {
	if h == nil {
		return nil
	}
	return h
}

// lazyStatus связывает сервер статуса с супервизором, который
// создаётся после сервера.
type lazyStatus struct {
	s *orchestrator.Supervisor
}

func (l *lazyStatus) Snapshot() *domain.Run {
	if l.s == nil {
		return nil
	}
	return l.s.Snapshot()
}

func (l *lazyStatus) Table() *steps.Table {
	if l.s == nil {
		return nil
	}
	return l.s.Table()
}

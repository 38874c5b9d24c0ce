package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/report"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/telemetry"
)

// metricsJob — имя задания в Pushgateway.
const metricsJob = "rpabot"

// teardown завершает run: процессы, сводка, отчёт, история и публикация
// в мониторинг. Каждый этап изолирован: ошибка или паника одного этапа
// не отменяет остальные.
func (s *Supervisor) teardown(ctx context.Context, run *domain.Run, state *runState, start time.Time, runErr error) *Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTeardownTimeout)
	defer cancel()
	logger := telemetry.WithRunID(s.logger, run.ID.String())

	s.kill(ctx)
	final := s.finalRun(run, runErr)
	state.RunFinished(ctx, final)

	end := s.now()
	summary := domain.NewRunSummary(final, s.cfg.Metadata, s.hostname, start, end)
	logger.Info(summary.StatesLabel(), "status", final.Status)

	res := &Result{Run: final, Summary: summary}

	if s.reporter != nil {
		s.safe(logger, "report", func() error {
			s.reporter.Report(ctx, final)
			return nil
		})
	}

	s.safe(logger, "summary", func() error {
		path := report.SummaryPath(s.cfg.Framework.ProcessData, end)
		if err := report.WriteSummary(path, summary); err != nil {
			return err
		}
		res.SummaryFile = path
		return nil
	})

	if s.history != nil {
		s.safe(logger, "history", func() error {
			return s.history.AddRun(ctx, final, summary)
		})
	}

	if s.metrics != nil && s.cfg.Monitoring.PushgatewayURL != "" {
		s.safe(logger, "metrics push", func() error {
			return s.metrics.Push(ctx, s.cfg.Monitoring.PushgatewayURL, metricsJob, s.cfg.Metadata.ProcessCode)
		})
	}

	if !s.cfg.MonitoringEnabled() {
		return res
	}

	logFile := s.currentLogFile()
	if s.runs != nil {
		s.safe(logger, "monitoring db", func() error {
			return s.runs.Save(ctx, final, summary, state.Attempts())
		})
	}
	if s.uploader != nil {
		s.safe(logger, "upload", func() error {
			_, err := s.uploader.Upload(ctx, s.cfg.Metadata.ProcessCode, final.ID.String(), end, logFile, res.SummaryFile)
			return err
		})
	}
	if s.cfg.IsProduction() && s.reporter != nil {
		s.safe(logger, "monitoring mail", func() error {
			return s.reporter.Monitoring(ctx, summary, res.SummaryFile, logFile)
		})
	}
	return res
}

// finalRun дожидается секвенсора и возвращает итоговый run.
// Если секвенсор не запускался, run завершается как FAILED с runErr.
func (s *Supervisor) finalRun(run *domain.Run, runErr error) *domain.Run {
	s.mu.RLock()
	w := s.worker
	s.mu.RUnlock()

	final := run
	if w != nil {
		if w.IsAlive() {
			w.Stop()
		}
		if r := w.Wait(); r != nil {
			final = r
		}
	}

	if !final.IsFinished() {
		if runErr == nil {
			runErr = errors.New("run ended without terminal status")
		}
		final.Finish(domain.RunStatusFailed, steps.Failure(steps.AsSystem(runErr), final.StepIndex, final.StepName, final.Attempt))
	}
	return final
}

// currentLogFile возвращает лог-файл run.
func (s *Supervisor) currentLogFile() string {
	if s.logFile != "" {
		return s.logFile
	}
	path, err := telemetry.LastLogFile(s.cfg.Framework.LogFolder)
	if err != nil {
		return ""
	}
	return path
}

// safe выполняет этап teardown, перехватывая ошибки и панику.
func (s *Supervisor) safe(logger *slog.Logger, stage string, fn func() error) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("teardown stage panic", "stage", stage, "panic", v)
		}
	}()
	if err := fn(); err != nil {
		logger.Warn("teardown stage failed", "stage", stage, "error", err)
	}
}

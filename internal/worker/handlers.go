package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/telemetry"
)

// execute — основной цикл секвенсора.
func (w *Worker) execute(ctx context.Context, run *domain.Run) *domain.Run {
	w.mu.Lock()
	w.run = run
	run.MarkRunning()
	w.mu.Unlock()

	logger := telemetry.WithRunID(w.logger, run.ID.String())
	logger.Info("--------- starting execution ---------",
		"start_step", run.StartStep,
		"total_steps", w.table.Count(),
		"max_tries", w.policy.MaxTries,
	)
	if run.StartStep > w.table.Last() {
		logger.Warn("start step is beyond the last step, run ends without executing any step",
			"start_step", run.StartStep,
			"last_step", w.table.Last(),
		)
	}

	// Шаги не прерываются запросом остановки: отмена наблюдается
	// только между итерациями.
	stepCtx := context.WithoutCancel(ctx)
	started := time.Now()

	for {
		if w.IsStopped() || ctx.Err() != nil {
			logger.Warn("execution stopped", "step", run.StepIndex)
			w.finish(domain.RunStatusStopped, nil)
			break
		}

		entry, ok := w.table.Get(run.StepIndex)
		if !ok {
			if run.StepIndex <= w.table.Last() {
				logger.Warn("state not implemented", "step", run.StepIndex)
			}
			logger.Info("execution finished", "elapsed", time.Since(started).Round(time.Millisecond))
			w.finish(domain.RunStatusSuccess, nil)
			break
		}

		w.update(func(r *domain.Run) { r.StepName = entry.Name })
		stepLogger := telemetry.WithStep(logger, entry.Index, entry.Name)
		stepLogger.Info("----- starting state -----", "attempt", run.Attempt)

		attempt := domain.StepAttempt{
			RunID:     run.ID,
			StepIndex: entry.Index,
			StepName:  entry.Name,
			Attempt:   run.Attempt,
			StartedAt: time.Now(),
		}
		err := w.executeAttempt(telemetry.WithLogger(stepCtx, stepLogger), entry)
		attempt.FinishedAt = time.Now()

		if err == nil {
			attempt.Outcome = domain.AttemptSucceeded
			w.notifyAttempt(stepCtx, attempt)
			stepLogger.Info("state finished", "duration", attempt.Duration().Round(time.Millisecond))
			w.update(func(r *domain.Run) { r.Advance() })
			continue
		}

		kind := steps.Classify(err)
		stepLogger.Error("exception found",
			"kind", kind,
			"error", err,
			"try", fmt.Sprintf("%d/%d", run.Attempt, w.policy.MaxTries),
		)
		w.killConfigured(stepCtx)

		decision := w.policy.Decide(kind, run.Attempt)
		attempt.Kind = kind
		attempt.Error = err.Error()

		if decision.Action == ActionRetry {
			attempt.Outcome = domain.AttemptRetried
			w.notifyAttempt(stepCtx, attempt)
			stepLogger.Warn("retrying state", "next_attempt", run.Attempt+1, "delay", decision.Delay)
			w.update(func(r *domain.Run) { r.NextAttempt() })
			w.sleep(ctx, decision.Delay)
			continue
		}

		attempt.Outcome = domain.AttemptAbandoned
		w.notifyAttempt(stepCtx, attempt)
		if kind == domain.FailureSystem {
			stepLogger.Warn("max tries reached", "error", fmt.Errorf("%w: %w", ErrRetryExhausted, err))
		} else {
			stepLogger.Warn("business exception, run abandoned")
		}
		w.finish(decision.Status, steps.Failure(err, entry.Index, entry.Name, run.Attempt))
		break
	}

	final := w.Snapshot()
	logger.Info("run finished",
		"status", final.Status,
		"step", final.StepIndex,
		"states_completed", final.StatesCompleted(),
	)
	if w.observer != nil {
		w.observer.RunFinished(stepCtx, final)
	}
	return final
}

// executeAttempt строит новый экземпляр шага и выполняет его.
// Паника в фабрике или в шаге превращается в SystemError.
func (w *Worker) executeAttempt(ctx context.Context, entry steps.Entry) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = steps.FromPanic(v, debug.Stack())
		}
	}()

	step, err := entry.Factory(w.env)
	if err != nil {
		return steps.AsSystem(fmt.Errorf("build step %s: %w", entry.Name, err))
	}
	if step == nil {
		return steps.AsSystem(fmt.Errorf("%w: %s", ErrStepNotBuilt, entry.Name))
	}

	if err := step.Execute(ctx); err != nil {
		return steps.AsSystem(err)
	}
	return nil
}

// finish переводит run в терминальный статус.
func (w *Worker) finish(status domain.RunStatus, failure *domain.FailureRecord) {
	w.update(func(r *domain.Run) { r.Finish(status, failure) })
}

// killConfigured завершает процессы из конфигурации. Ошибки только логируются.
func (w *Worker) killConfigured(ctx context.Context) {
	if !w.killProcesses || w.killer == nil || len(w.killList) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, defaultKillTimeout)
	defer cancel()
	if err := w.killer.Kill(ctx, w.killList); err != nil {
		w.logger.Warn("failed to kill processes", "processes", w.killList, "error", err)
	}
}

// notifyAttempt передаёт попытку наблюдателю.
func (w *Worker) notifyAttempt(ctx context.Context, a domain.StepAttempt) {
	if w.observer != nil {
		w.observer.AttemptFinished(ctx, a)
	}
}

// sleep ждёт задержку перед повтором. Запрос остановки прерывает ожидание.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.stopCh:
	case <-ctx.Done():
	}
}

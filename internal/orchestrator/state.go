package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/telemetry"
)

// runState собирает попытки run и раздаёт события секвенсора
// метрикам, локальной истории и очереди событий.
//
// Реализует worker.Observer.
type runState struct {
	processCode string
	metrics     *telemetry.Metrics
	history     HistoryStore
	publisher   EventPublisher
	logger      *slog.Logger

	mu       sync.Mutex
	attempts []domain.StepAttempt
	finished bool
}

func (s *runState) AttemptFinished(ctx context.Context, a domain.StepAttempt) {
	s.mu.Lock()
	s.attempts = append(s.attempts, a)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetCurrentStep(a.StepIndex)
		s.metrics.StepAttempt(a.StepName, string(a.Outcome), string(a.Kind), a.Duration())
	}
	if s.history != nil {
		if err := s.history.AddAttempt(ctx, a); err != nil {
			s.logger.Warn("failed to save attempt to history", "step", a.StepIndex, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAttempt(ctx, s.processCode, a); err != nil {
			s.logger.Warn("failed to publish step.attempt", "step", a.StepIndex, "error", err)
		}
	}
}

func (s *runState) RunFinished(ctx context.Context, run *domain.Run) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RunFinished(string(run.Status))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRunFinished(ctx, run); err != nil {
			s.logger.Warn("failed to publish run.finished", "error", err)
		}
	}
}

// Attempts возвращает копию собранных попыток.
func (s *runState) Attempts() []domain.StepAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StepAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

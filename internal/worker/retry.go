package worker

import (
	"time"

	"github.com/shaiso/rpabot/internal/domain"
)

// Action — решение политики повторов.
type Action string

const (
	// ActionRetry — повторить тот же шаг.
	ActionRetry Action = "RETRY_SAME_STEP"

	// ActionAbandon — прервать run.
	ActionAbandon Action = "ABANDON_RUN"
)

// Decision — результат RetryPolicy.Decide.
type Decision struct {
	Action Action

	// Status — терминальный статус run при ActionAbandon.
	Status domain.RunStatus

	// Delay — пауза перед повтором при ActionRetry.
	Delay time.Duration
}

// RetryPolicy — политика повторов шага.
//
//	BUSINESS, любая попытка      → ABANDON (WARNING)
//	SYSTEM, attempt < MaxTries   → RETRY (attempt + 1)
//	SYSTEM, attempt >= MaxTries  → ABANDON (FAILED)
type RetryPolicy struct {
	// MaxTries — максимум попыток шага (≥ 1).
	MaxTries int

	// Backoff — "none", "fixed" или "exponential".
	Backoff string

	// InitialDelay и MaxDelay — параметры backoff.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Decide применяет таблицу решений.
func (p RetryPolicy) Decide(kind domain.FailureKind, attempt int) Decision {
	if kind == domain.FailureBusiness {
		return Decision{Action: ActionAbandon, Status: domain.RunStatusWarning}
	}

	maxTries := max(p.MaxTries, 1)
	if attempt < maxTries {
		return Decision{Action: ActionRetry, Delay: calculateBackoff(attempt, p)}
	}
	return Decision{Action: ActionAbandon, Status: domain.RunStatusFailed}
}

// calculateBackoff вычисляет задержку перед повтором.
func calculateBackoff(attempt int, p RetryPolicy) time.Duration {
	if p.Backoff == "" || p.Backoff == "none" {
		return 0
	}

	initialDelay := p.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch p.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	IDLE → RUNNING → SUCCESS
//	               ↘ FAILED  (system failure после исчерпания попыток)
//	               ↘ WARNING (business failure, без повторов)
//	               ↘ STOPPED (кооперативная отмена)
type RunStatus string

const (
	// RunStatusIdle — run создан, но ещё не начал выполняться.
	RunStatusIdle RunStatus = "IDLE"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSuccess — все шаги выполнены.
	RunStatusSuccess RunStatus = "SUCCESS"

	// RunStatusFailed — system failure, попытки исчерпаны.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusWarning — run прерван business failure.
	RunStatusWarning RunStatus = "WARNING"

	// RunStatusStopped — run остановлен извне.
	RunStatusStopped RunStatus = "STOPPED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusWarning, RunStatusStopped:
		return true
	default:
		return false
	}
}

// NeedsReport возвращает true для статусов, о которых отправляется
// уведомление об исключении.
func (s RunStatus) NeedsReport() bool {
	return s == RunStatusFailed || s == RunStatusWarning
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// FailureKind — класс ошибки шага.
type FailureKind string

const (
	// FailureBusiness — ожидаемое нарушение бизнес-правила. Не повторяется.
	FailureBusiness FailureKind = "BUSINESS"

	// FailureSystem — любая другая ошибка. Повторяется до max_tries.
	FailureSystem FailureKind = "SYSTEM"
)

// AttemptOutcome — результат одной попытки шага.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "SUCCEEDED"
	AttemptRetried   AttemptOutcome = "RETRIED"
	AttemptAbandoned AttemptOutcome = "ABANDONED"
)

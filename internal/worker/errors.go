package worker

import "errors"

// Ошибки воркера.
var (
	// ErrAlreadyStarted — воркер уже выполняет run.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrNoTable — таблица шагов не задана.
	ErrNoTable = errors.New("step table is not configured")

	// ErrRetryExhausted — все попытки шага исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrStepNotBuilt — фабрика не вернула шаг.
	ErrStepNotBuilt = errors.New("step factory returned nil step")
)

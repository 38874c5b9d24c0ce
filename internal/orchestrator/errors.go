package orchestrator

import "errors"

// Ошибки супервизора.
var (
	// ErrNoConfig — конфигурация не передана.
	ErrNoConfig = errors.New("supervisor config is required")

	// ErrNoTable — таблица шагов не передана.
	ErrNoTable = errors.New("step table is required")

	// ErrSupervisorPanic — паника в супервизоре.
	ErrSupervisorPanic = errors.New("supervisor panic")

	// ErrPrepare — не удалось подготовить окружение run.
	ErrPrepare = errors.New("prepare run environment")
)

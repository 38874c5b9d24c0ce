package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepAttempt — одна попытка выполнения шага.
//
// Попытки сохраняются в локальную историю и публикуются как события,
// но секвенсор сам их не хранит: каждая попытка строит новый экземпляр шага.
type StepAttempt struct {
	// RunID — ссылка на run.
	RunID uuid.UUID `json:"run_id"`

	// StepIndex — порядковый номер шага (1..N).
	StepIndex int `json:"step_index"`

	// StepName — имя шага из таблицы.
	StepName string `json:"step_name"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// Outcome — результат попытки.
	Outcome AttemptOutcome `json:"outcome"`

	// Kind — класс ошибки; пусто при успехе.
	Kind FailureKind `json:"kind,omitempty"`

	// Error — текст ошибки; пусто при успехе.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность попытки.
func (a StepAttempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// Failed возвращает true, если попытка завершилась ошибкой.
func (a StepAttempt) Failed() bool {
	return a.Outcome != AttemptSucceeded
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одно выполнение бота.
//
// Run создаётся супервизором при старте процесса. Поля StepIndex, Attempt
// и Status изменяет только секвенсор; супервизор читает их через снапшот.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// ProcessCode — код процесса из metadata конфигурации.
	ProcessCode string `json:"process_code"`

	// Environment — окружение (DEV, QAS, PRD).
	Environment string `json:"environment"`

	// StartStep — индекс шага, с которого начат run (аргумент CLI).
	StartStep int `json:"start_step"`

	// StepIndex — индекс текущего шага. Не убывает, пока run в RUNNING.
	StepIndex int `json:"step_index"`

	// StepName — имя текущего шага, если он есть в таблице.
	StepName string `json:"step_name,omitempty"`

	// Attempt — номер попытки текущего шага (начиная с 1).
	Attempt int `json:"attempt"`

	// TotalSteps — количество шагов в таблице.
	TotalSteps int `json:"total_steps"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Failure — запись об ошибке, прервавшей run. Не более одной на run.
	Failure *FailureRecord `json:"failure,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в терминальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе IDLE. Индексы меньше 1 приводятся к 1.
func NewRun(processCode, environment string, startStep, totalSteps int) *Run {
	if startStep < 1 {
		startStep = 1
	}
	return &Run{
		ID:          uuid.New(),
		ProcessCode: processCode,
		Environment: environment,
		StartStep:   startStep,
		StepIndex:   startStep,
		Attempt:     1,
		TotalSteps:  totalSteps,
		Status:      RunStatusIdle,
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// Advance переходит к следующему шагу и сбрасывает счётчик попыток.
func (r *Run) Advance() {
	r.StepIndex++
	r.Attempt = 1
	r.StepName = ""
}

// NextAttempt увеличивает счётчик попыток текущего шага.
func (r *Run) NextAttempt() {
	r.Attempt++
}

// Finish переводит run в терминальный статус.
// Повторный вызов на завершённом run ничего не меняет и возвращает false.
func (r *Run) Finish(status RunStatus, failure *FailureRecord) bool {
	if r.Status.IsTerminal() || !status.IsTerminal() {
		return false
	}
	now := time.Now()
	r.Status = status
	r.Failure = failure
	r.FinishedAt = &now
	return true
}

// StatesCompleted возвращает количество завершённых шагов для отчёта.
//
// При SUCCESS индекс указывает на первый несуществующий шаг, поэтому
// из него вычитается единица. Результат не превышает TotalSteps.
func (r *Run) StatesCompleted() int {
	completed := max(r.StepIndex, 1)
	if r.Status == RunStatusSuccess {
		completed--
	}
	if r.TotalSteps > 0 && completed > r.TotalSteps {
		completed = r.TotalSteps
	}
	return completed
}

// Clone возвращает копию run, безопасную для чтения из другой горутины.
func (r *Run) Clone() *Run {
	c := *r
	if r.Failure != nil {
		f := *r.Failure
		c.Failure = &f
	}
	return &c
}

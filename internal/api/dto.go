package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/steps"
)

// Run DTOs

// RunResponse — ответ с текущим состоянием run.
type RunResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProcessCode     string     `json:"process_code"`
	Environment     string     `json:"environment"`
	Status          string     `json:"status"`
	StartStep       int        `json:"start_step"`
	StepIndex       int        `json:"step_index"`
	StepName        string     `json:"step_name,omitempty"`
	Attempt         int        `json:"attempt"`
	StatesCompleted int        `json:"states_completed"`
	TotalStates     int        `json:"total_states"`
	Failure         *Failure   `json:"failure,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Failure — ошибка, прервавшая run. Трасса в ответ не попадает.
type Failure struct {
	Kind      string `json:"kind"`
	StepIndex int    `json:"step_index"`
	Attempts  int    `json:"attempts"`
	Message   string `json:"message"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r *domain.Run) RunResponse {
	resp := RunResponse{
		ID:              r.ID,
		ProcessCode:     r.ProcessCode,
		Environment:     r.Environment,
		Status:          string(r.Status),
		StartStep:       r.StartStep,
		StepIndex:       r.StepIndex,
		StepName:        r.StepName,
		Attempt:         r.Attempt,
		StatesCompleted: r.StatesCompleted(),
		TotalStates:     r.TotalSteps,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
	if f := r.Failure; f != nil {
		resp.Failure = &Failure{
			Kind:      string(f.Kind),
			StepIndex: f.StepIndex,
			Attempts:  f.Attempts,
			Message:   f.Message,
		}
	}
	return resp
}

// Step DTOs

// StateResponse — строка таблицы шагов.
type StateResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// StatesFromTable конвертирует таблицу шагов в список.
func StatesFromTable(t *steps.Table) []StateResponse {
	entries := t.Entries()
	out := make([]StateResponse, len(entries))
	for i, e := range entries {
		out[i] = StateResponse{Index: e.Index, Name: e.Name}
	}
	return out
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

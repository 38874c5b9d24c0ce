package domain

import (
	"fmt"
	"time"
)

// TimeLayout — формат времени в отчётах и служебных файлах.
const TimeLayout = "2006-01-02 15:04:05"

// Metadata — описание процесса из конфигурации.
type Metadata struct {
	Environment string `json:"ENVIRONMENT" yaml:"environment"`
	ProcessCode string `json:"PROCESS_CODE" yaml:"process_code"`
	ProcessName string `json:"PROCESS_NAME" yaml:"process_name"`
	Area        string `json:"N_AREA" yaml:"area"`
	Management  string `json:"N_GERENCIA" yaml:"management"`
}

// RunSummary — итоговая запись о run.
type RunSummary struct {
	RunID           string    `json:"RUN_ID"`
	Status          RunStatus `json:"EXECUTION_STATUS"`
	ProcessedStates int       `json:"PROCESSED_STATES"`
	TotalStates     int       `json:"TOTAL_STATES"`
	StartTime       time.Time `json:"-"`
	EndTime         time.Time `json:"-"`
	Hostname        string    `json:"HOSTNAME"`
	Metadata        Metadata  `json:"METADATA"`
}

// NewRunSummary строит сводку по завершённому run.
func NewRunSummary(run *Run, meta Metadata, hostname string, start, end time.Time) RunSummary {
	return RunSummary{
		RunID:           run.ID.String(),
		Status:          run.Status,
		ProcessedStates: run.StatesCompleted(),
		TotalStates:     run.TotalSteps,
		StartTime:       start,
		EndTime:         end,
		Hostname:        hostname,
		Metadata:        meta,
	}
}

// StatesLabel возвращает строку вида "States Completed: 3/4".
func (s RunSummary) StatesLabel() string {
	return fmt.Sprintf("States Completed: %d/%d", s.ProcessedStates, s.TotalStates)
}

// Record возвращает сводку как плоский набор ключ-значение.
// Порядок ключей задаёт RecordKeys.
func (s RunSummary) Record() map[string]string {
	return map[string]string{
		"EXECUTION_STATUS": string(s.Status),
		"PROCESSED_STATES": fmt.Sprint(s.ProcessedStates),
		"TOTAL_STATES":     fmt.Sprint(s.TotalStates),
		"START_TIME":       s.StartTime.Format(TimeLayout),
		"END_TIME":         s.EndTime.Format(TimeLayout),
		"RUN_ID":           s.RunID,
		"HOSTNAME":         s.Hostname,
		"ENVIRONMENT":      s.Metadata.Environment,
		"PROCESS_CODE":     s.Metadata.ProcessCode,
		"PROCESS_NAME":     s.Metadata.ProcessName,
		"N_AREA":           s.Metadata.Area,
		"N_GERENCIA":       s.Metadata.Management,
	}
}

// RecordKeys — порядок ключей записи для таблиц и JSON.
var RecordKeys = []string{
	"PROCESS_CODE", "PROCESS_NAME", "ENVIRONMENT", "EXECUTION_STATUS",
	"PROCESSED_STATES", "TOTAL_STATES", "START_TIME", "END_TIME",
	"N_AREA", "N_GERENCIA", "HOSTNAME", "RUN_ID",
}

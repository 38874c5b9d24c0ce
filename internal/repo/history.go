package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/shaiso/rpabot/internal/domain"
)

// HistoryEntry — строка локальной истории запусков.
type HistoryEntry struct {
	RunID           string           `json:"run_id"`
	ProcessCode     string           `json:"process_code"`
	Environment     string           `json:"environment"`
	Status          domain.RunStatus `json:"status"`
	StartStep       int              `json:"start_step"`
	ProcessedStates int              `json:"processed_states"`
	TotalStates     int              `json:"total_states"`
	FailureKind     string           `json:"failure_kind,omitempty"`
	FailureMessage  string           `json:"failure_message,omitempty"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
}

// HistoryStore — локальная история запусков в SQLite.
// Пишется в любом окружении, в том числе без БД мониторинга.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory открывает (или создаёт) файл истории.
func OpenHistory(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			process_code TEXT NOT NULL,
			environment TEXT NOT NULL,
			status TEXT NOT NULL,
			start_step INTEGER NOT NULL,
			processed_states INTEGER NOT NULL,
			total_states INTEGER NOT NULL,
			failure_kind TEXT,
			failure_message TEXT,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			step_name TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			kind TEXT,
			error TEXT,
			duration_ms INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
	}
	return &HistoryStore{db: db}, nil
}

// Close закрывает файл истории.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// AddAttempt сохраняет попытку шага.
func (h *HistoryStore) AddAttempt(ctx context.Context, a domain.StepAttempt) error {
	query := `INSERT INTO attempts (run_id, step_index, step_name, attempt, outcome, kind, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := h.db.ExecContext(ctx, query,
		a.RunID.String(), a.StepIndex, a.StepName, a.Attempt, string(a.Outcome),
		nullString(string(a.Kind)), nullString(a.Error), a.Duration().Milliseconds())
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// AddRun сохраняет итог run.
func (h *HistoryStore) AddRun(ctx context.Context, run *domain.Run, s domain.RunSummary) error {
	var kind, message *string
	if run.Failure != nil {
		kind = nullString(string(run.Failure.Kind))
		message = nullString(run.Failure.Message)
	}
	query := `INSERT OR REPLACE INTO runs (run_id, process_code, environment, status, start_step,
			processed_states, total_states, failure_kind, failure_message, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := h.db.ExecContext(ctx, query,
		run.ID.String(), run.ProcessCode, run.Environment, string(run.Status), run.StartStep,
		s.ProcessedStates, s.TotalStates, kind, message,
		s.StartTime.UTC().Format(time.RFC3339), s.EndTime.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List возвращает последние limit запусков, новые первыми.
func (h *HistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `SELECT run_id, process_code, environment, status, start_step, processed_states,
			total_states, COALESCE(failure_kind, ''), COALESCE(failure_message, ''), start_time, end_time
		FROM runs ORDER BY start_time DESC LIMIT ?`
	rows, err := h.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status, start, end string
		if err := rows.Scan(&e.RunID, &e.ProcessCode, &e.Environment, &status, &e.StartStep,
			&e.ProcessedStates, &e.TotalStates, &e.FailureKind, &e.FailureMessage, &start, &end); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = domain.RunStatus(status)
		e.StartTime, _ = time.Parse(time.RFC3339, start)
		e.EndTime, _ = time.Parse(time.RFC3339, end)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attempts возвращает попытки run по порядку.
func (h *HistoryStore) Attempts(ctx context.Context, runID string) ([]domain.StepAttempt, error) {
	query := `SELECT step_index, step_name, attempt, outcome, COALESCE(kind, ''), COALESCE(error, '')
		FROM attempts WHERE run_id = ? ORDER BY id`
	rows, err := h.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.StepAttempt
	for rows.Next() {
		var a domain.StepAttempt
		var outcome, kind string
		if err := rows.Scan(&a.StepIndex, &a.StepName, &a.Attempt, &outcome, &kind, &a.Error); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = domain.AttemptOutcome(outcome)
		a.Kind = domain.FailureKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

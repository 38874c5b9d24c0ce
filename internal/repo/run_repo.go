package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/rpabot/internal/domain"
)

// RunRepo — репозиторий run в БД мониторинга.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Save сохраняет завершённый run со сводкой и его попытки одной транзакцией.
func (r *RunRepo) Save(ctx context.Context, run *domain.Run, s domain.RunSummary, attempts []domain.StepAttempt) error {
	failureJSON, err := marshalFailure(run.Failure)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bot_runs (id, process_code, process_name, environment, hostname, status,
		                      start_step, step_index, processed_states, total_states, failure,
		                      started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, step_index = EXCLUDED.step_index,
		    processed_states = EXCLUDED.processed_states, failure = EXCLUDED.failure,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = tx.Exec(ctx, query,
		run.ID,
		run.ProcessCode,
		s.Metadata.ProcessName,
		run.Environment,
		s.Hostname,
		string(run.Status),
		run.StartStep,
		run.StepIndex,
		s.ProcessedStates,
		s.TotalStates,
		failureJSON,
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, a := range attempts {
		batch.Queue(`
			INSERT INTO step_attempts (run_id, step_index, step_name, attempt, outcome, kind, error, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.RunID, a.StepIndex, a.StepName, a.Attempt, string(a.Outcome),
			nullString(string(a.Kind)), nullString(a.Error), a.StartedAt, a.FinishedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert attempts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, process_code, environment, status, start_step, step_index, total_states,
		       failure, started_at, finished_at, created_at
		FROM bot_runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListByProcess возвращает последние run процесса.
func (r *RunRepo) ListByProcess(ctx context.Context, processCode string, limit int) ([]domain.Run, error) {
	query := `
		SELECT id, process_code, environment, status, start_step, step_index, total_states,
		       failure, started_at, finished_at, created_at
		FROM bot_runs
		WHERE process_code = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, processCode, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Helpers ---

// scanRun сканирует одну строку в Run. Подходит и для pgx.Row, и для pgx.Rows.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var status string
	var failureJSON []byte

	err := row.Scan(
		&run.ID,
		&run.ProcessCode,
		&run.Environment,
		&status,
		&run.StartStep,
		&run.StepIndex,
		&run.TotalSteps,
		&failureJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = domain.RunStatus(status)

	if failureJSON != nil {
		var f domain.FailureRecord
		if err := json.Unmarshal(failureJSON, &f); err != nil {
			return nil, fmt.Errorf("unmarshal failure: %w", err)
		}
		run.Failure = &f
	}
	return &run, nil
}

func marshalFailure(f *domain.FailureRecord) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal failure: %w", err)
	}
	return data, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

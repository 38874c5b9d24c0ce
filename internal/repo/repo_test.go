package repo

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
)

// --- History Tests ---

func TestHistoryStore_RunsAndAttempts(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "logs", "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	for i, status := range []domain.RunStatus{domain.RunStatusSuccess, domain.RunStatusFailed} {
		run := domain.NewRun("P001", "DEV", 1, 4)
		run.MarkRunning()
		var f *domain.FailureRecord
		if status == domain.RunStatusFailed {
			run.StepIndex = 2
			f = &domain.FailureRecord{Kind: domain.FailureSystem, Message: "disk full"}
		} else {
			run.StepIndex = 5
		}
		run.Finish(status, f)

		start := base.Add(time.Duration(i) * time.Hour)
		s := domain.NewRunSummary(run, domain.Metadata{ProcessCode: "P001"}, "host", start, start.Add(time.Minute))

		a := domain.StepAttempt{
			RunID: run.ID, StepIndex: 1, StepName: "generate_worktray", Attempt: 1,
			Outcome: domain.AttemptSucceeded, StartedAt: start, FinishedAt: start.Add(time.Second),
		}
		if err := h.AddAttempt(ctx, a); err != nil {
			t.Fatalf("AddAttempt failed: %v", err)
		}
		if err := h.AddRun(ctx, run, s); err != nil {
			t.Fatalf("AddRun failed: %v", err)
		}
	}

	list, err := h.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}
	latest := list[0]
	if latest.Status != domain.RunStatusFailed || latest.ProcessedStates != 2 || latest.FailureMessage != "disk full" {
		t.Errorf("unexpected latest run: %+v", latest)
	}
	if list[1].ProcessedStates != 4 || list[1].FailureKind != "" {
		t.Errorf("unexpected first run: %+v", list[1])
	}
	if !latest.StartTime.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected start time: %s", latest.StartTime)
	}

	attempts, err := h.Attempts(ctx, latest.RunID)
	if err != nil {
		t.Fatalf("Attempts failed: %v", err)
	}
	if len(attempts) != 1 || attempts[0].StepName != "generate_worktray" {
		t.Errorf("unexpected attempts: %+v", attempts)
	}
}

// --- Migrations Tests ---

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}
	data, _ := fs.ReadFile(migrations, files[0])
	if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
		t.Error("migration must have goose annotations")
	}
}

func TestNewPool_NotConfigured(t *testing.T) {
	t.Setenv("DB_URL", "")
	if _, err := NewPool(context.Background(), ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

package steps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/excel"
)

// GenerateWorktrayName — имя шага построения worktray.
const GenerateWorktrayName = "generate_worktray"

const (
	worktraySheet     = "base"
	worktrayFilter    = "project_finished"
	worktrayExecution = "execution_datetime"
	worktrayNotes     = "observations"
)

// GenerateWorktray читает входной файл процесса и сохраняет worktray:
// только строки с project_finished = FALSE, плюс колонки даты
// исполнения и наблюдений.
type GenerateWorktray struct {
	env *Env
}

// NewGenerateWorktray — Factory шага generate_worktray.
func NewGenerateWorktray(env *Env) (Step, error) {
	if env == nil || env.Config == nil {
		return nil, fmt.Errorf("%w: %s: env is required", ErrInvalidConfig, GenerateWorktrayName)
	}
	return &GenerateWorktray{env: env}, nil
}

func (s *GenerateWorktray) Name() string { return GenerateWorktrayName }

func (s *GenerateWorktray) Execute(ctx context.Context) error {
	log := s.env.log(GenerateWorktrayName)
	log.Info("--- GENERATING THE WORKTRAY ---")

	e := s.env.Config.Env()
	if e.InputFile == "" || e.WorktrayFile == "" {
		return Systemf("%w: input_file and worktray_file are required", ErrInvalidConfig)
	}

	if _, err := os.Stat(e.InputFile); errors.Is(err, fs.ErrNotExist) {
		return businessFailure(s.env, fmt.Sprintf("input file %s was not found in %s",
			filepath.Base(e.InputFile), filepath.Dir(e.InputFile)))
	}

	input, err := excel.Read(e.InputFile, e.InputSheet)
	if err != nil {
		return Systemf("read input file: %w", err)
	}
	if e.InputColumns > 0 && len(input.Header) != e.InputColumns {
		return businessFailure(s.env, fmt.Sprintf("input file has %d columns, expected %d",
			len(input.Header), e.InputColumns), e.InputFile)
	}
	if input.Column(worktrayFilter) < 0 {
		return businessFailure(s.env, fmt.Sprintf("input file has no %s column", worktrayFilter), e.InputFile)
	}

	pending := input.Filter(func(row []string) bool {
		return excel.IsFalse(input.Value(row, worktrayFilter))
	})

	stamp := s.processingTime().Format(domain.TimeLayout)
	worktray := &excel.Table{
		Header: append(append([]string{}, input.Header...), worktrayExecution, worktrayNotes),
	}
	for _, row := range pending.Rows {
		out := make([]string, len(input.Header), len(input.Header)+2)
		copy(out, row)
		worktray.Rows = append(worktray.Rows, append(out, stamp, ""))
	}
	log.Info("worktray rows", "total_rows", len(worktray.Rows), "total_columns", len(worktray.Header))

	if e.WorktrayTemplate != "" {
		err = excel.WriteFromTemplate(e.WorktrayTemplate, e.WorktrayFile, worktraySheet, worktray)
	} else {
		err = excel.Write(e.WorktrayFile, worktraySheet, worktray)
	}
	if err != nil {
		return Systemf("save worktray: %w", err)
	}

	log.Info("worktray file generated", "path", e.WorktrayFile)
	return nil
}

func (s *GenerateWorktray) processingTime() time.Time {
	if s.env.Date != nil {
		return s.env.Date.Time()
	}
	return time.Now()
}

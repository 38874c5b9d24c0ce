package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/repo"
)

// NewHistoryCmd создаёт команду просмотра локальной истории.
func NewHistoryCmd(configFn func() (*config.Config, error), outputFn func() (*Output, error)) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := outputFn()
			if err != nil {
				return err
			}
			cfg, err := configFn()
			if err != nil {
				return err
			}

			h, err := repo.OpenHistory(cfg.Framework.HistoryDB)
			if err != nil {
				return err
			}
			defer h.Close()

			if runID != "" {
				attempts, err := h.Attempts(cmd.Context(), runID)
				if err != nil {
					return err
				}
				printAttempts(out, attempts)
				return nil
			}

			entries, err := h.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(out, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().StringVar(&runID, "run", "", "Show step attempts of a run")

	return cmd
}

func printHistory(out *Output, entries []repo.HistoryEntry) {
	headers := []string{"RUN_ID", "STATUS", "STATES", "START", "END", "FAILURE"}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.RunID,
			string(e.Status),
			fmt.Sprintf("%d/%d", e.ProcessedStates, e.TotalStates),
			e.StartTime.Local().Format(domain.TimeLayout),
			e.EndTime.Local().Format(domain.TimeLayout),
			e.FailureMessage,
		}
	}
	out.Print(headers, rows, entries)
}

func printAttempts(out *Output, attempts []domain.StepAttempt) {
	headers := []string{"STEP", "NAME", "ATTEMPT", "OUTCOME", "KIND", "ERROR"}
	rows := make([][]string, len(attempts))
	for i, a := range attempts {
		rows[i] = []string{
			strconv.Itoa(a.StepIndex),
			a.StepName,
			strconv.Itoa(a.Attempt),
			string(a.Outcome),
			string(a.Kind),
			a.Error,
		}
	}
	out.Print(headers, rows, attempts)
}

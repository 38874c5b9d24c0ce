package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/calendar"
	"github.com/shaiso/rpabot/internal/config"
)

// NewHolidaysCmd создаёт команду обновления календаря праздников.
func NewHolidaysCmd(configFn func() (*config.Config, error), outputFn func() (*Output, error)) *cobra.Command {
	var year int
	var force bool

	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Refresh the office holiday calendar",
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
			if year == 0 {
				year = time.Now().Year()
			}

			path := calendar.HolidayPath(cfg)
			if force {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}

			fetcher := &calendar.BrowserFetcher{URL: cfg.Calendar.HolidayURL, Headless: cfg.Headless()}
			h, err := calendar.EnsureHolidays(cmd.Context(), path, year, cfg.Calendar.YearRange, fetcher, nil)
			if err != nil {
				return err
			}

			dates := h.Dates()
			rows := make([][]string, len(dates))
			for i, d := range dates {
				rows[i] = []string{d}
			}
			out.Print([]string{"DATE"}, rows, dates)
			out.Success(fmt.Sprintf("%d holidays in %s", h.Len(), path))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Reference year (default current)")
	cmd.Flags().BoolVar(&force, "force", false, "Refetch even if the calendar has the year")

	return cmd
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/telemetry"
)

const closeTimeout = 15 * time.Second

// NewRunCmd создаёт команду запуска процесса.
func NewRunCmd(configFn func() (*config.Config, error), outputFn func() (*Output, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run [start-step]",
		Short: "Run the process starting from a step (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startStep, err := parseStartStep(args)
			if err != nil {
				return err
			}
			out, err := outputFn()
			if err != nil {
				return err
			}
			cfg, err := configFn()
			if err != nil {
				return err
			}

			logger, closer, err := telemetry.SetupLogger(telemetry.LoggerOptions{
				Console:   cmd.ErrOrStderr(),
				LogFolder: cfg.Framework.LogFolder,
				Label:     cfg.Metadata.ProcessCode,
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			logFile, _ := telemetry.LastLogFile(cfg.Framework.LogFolder)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			b, err := buildBot(ctx, cfg, logger, logFile)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
				defer closeCancel()
				b.Close(closeCtx)
			}()

			res, runErr := b.supervisor.Run(ctx, startStep)
			if res != nil {
				printSummary(out, res.Summary)
			}
			if runErr != nil {
				return runErr
			}
			return exitError(res.Run.Status)
		},
	}
}

// parseStartStep разбирает аргумент start-step.
func parseStartStep(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStartStep, args[0])
	}
	return n, nil
}

// printSummary выводит сводку run.
func printSummary(out *Output, s domain.RunSummary) {
	record := s.Record()
	rows := make([][]string, 0, len(domain.RecordKeys))
	for _, k := range domain.RecordKeys {
		rows = append(rows, []string{k, record[k]})
	}
	out.Print([]string{"PARAMETER", "VALUE"}, rows, record)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/telemetry"
)

// NewRootCmd создаёт корневую команду rpabot.
func NewRootCmd(version string) *cobra.Command {
	var configPath string
	var format string

	rootCmd := &cobra.Command{
		Use:           "rpabot",
		Short:         "rpabot — state-retry RPA bot runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Консольный логгер для служебных команд; run перенастраивает
			// его с лог-файлом после загрузки конфигурации.
			_, _, err := telemetry.SetupLogger(telemetry.LoggerOptions{Console: cmd.ErrOrStderr()})
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", FormatTable, "Output format (table|json)")

	configFn := func() (*config.Config, error) { return config.Load(configPath) }
	outputFn := func() (*Output, error) { return NewOutput(format) }

	rootCmd.AddCommand(
		NewRunCmd(configFn, outputFn),
		NewStatesCmd(outputFn),
		NewHistoryCmd(configFn, outputFn),
		NewEventsCmd(configFn, outputFn),
		NewHolidaysCmd(configFn, outputFn),
		NewStopCmd(configFn, outputFn),
		newVersionCmd(version),
	)

	return rootCmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}

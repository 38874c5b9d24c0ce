package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/orchestrator"
)

const defaultStopTTL = time.Hour

// NewStopCmd создаёт команду запроса остановки работающего бота.
func NewStopCmd(configFn func() (*config.Config, error), outputFn func() (*Output, error)) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Request a cooperative stop of the running bot",
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
			if !cfg.Framework.CancelPoll {
				out.Error("framework.cancel_poll is off, the bot will not observe the request")
			}

			requested := false
			if url := cfg.Monitoring.RedisURL; url != "" {
				client, err := orchestrator.DialRedis(cmd.Context(), url)
				if err != nil {
					return err
				}
				defer client.Close()
				if err := orchestrator.RequestStop(cmd.Context(), client, cfg.Metadata.ProcessCode, ttl); err != nil {
					return fmt.Errorf("set stop key: %w", err)
				}
				out.Success("stop requested via redis")
				requested = true
			}
			if path := cfg.Framework.StopFile; path != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
					return fmt.Errorf("write stop file: %w", err)
				}
				out.Success("stop file created: " + path)
				requested = true
			}
			if !requested {
				return errors.New("neither monitoring.redis_url nor framework.stop_file is configured")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", defaultStopTTL, "Lifetime of the redis stop key")

	return cmd
}

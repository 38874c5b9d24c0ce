package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/mq"
)

// NewEventsCmd создаёт команду чтения событий run из RabbitMQ.
func NewEventsCmd(configFn func() (*config.Config, error), outputFn func() (*Output, error)) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail run events from RabbitMQ",
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
			if cfg.Monitoring.RabbitMQURL == "" {
				return errors.New("monitoring.rabbitmq_url is not configured")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			conn, err := mq.Dial(cfg.Monitoring.RabbitMQURL, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}
			code := cfg.Metadata.ProcessCode
			if all {
				code = ""
			}
			queue, err := mq.DeclareTailQueue(ctx, conn, code)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("listening on %s (ctrl+c to stop)", queue))

			consumer := mq.NewConsumer(conn, nil, mq.ConsumerConfig{
				Queue: queue,
				Handler: func(_ context.Context, d *mq.Delivery) error {
					printEvent(out, d)
					return nil
				},
			})
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show events of all processes")

	return cmd
}

// printEvent выводит событие одной строкой (или JSON-объектом).
func printEvent(out *Output, d *mq.Delivery) {
	if out.jsonMode {
		out.JSON(d.Message)
		return
	}

	ts := d.Message.Timestamp.Local().Format(domain.TimeLayout)
	switch d.Message.Type {
	case mq.MessageTypeStepAttempt:
		p, err := mq.ParsePayload[mq.AttemptPayload](&d.Message)
		if err != nil {
			out.Error(err.Error())
			return
		}
		fmt.Fprintf(out.w, "%s  %-12s %s  step=%d(%s) attempt=%d outcome=%s %s\n",
			ts, d.Message.Type, p.ProcessCode, p.StepIndex, p.StepName, p.Attempt, p.Outcome, p.Error)
	default:
		p, err := mq.ParsePayload[mq.RunPayload](&d.Message)
		if err != nil {
			out.Error(err.Error())
			return
		}
		fmt.Fprintf(out.w, "%s  %-12s %s  status=%s states=%d/%d %s\n",
			ts, d.Message.Type, p.ProcessCode, p.Status, p.StatesCompleted, p.TotalStates, p.FailureMessage)
	}
}

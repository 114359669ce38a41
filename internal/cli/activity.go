package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
)

func newActivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect the activity event stream",
	}

	var binding, queue string
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print activity events as they are published",
		Long: `Binds a queue to the activity exchange and prints one line per event
until interrupted. Without --queue an exclusive, auto-deleted queue is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)

			cfg := do.MustInvoke[*config.Config](inj)
			if !cfg.RabbitMQ.Enabled {
				return errors.New("rabbitmq is disabled (set rabbitmq.enabled)")
			}
			conn := do.MustInvoke[*amqp.Connection](inj)
			consumer, err := mq.NewActivityConsumer(conn, queue, binding, 0, do.MustInvoke[*zap.Logger](inj), cfg)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = consumer.Handle(ctx, func(_ context.Context, ev mq.ActivityEvent) error {
				_, werr := fmt.Fprintln(out, formatEvent(ev))
				return werr
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	watch.Flags().StringVar(&binding, "binding", "#", "topic pattern, e.g. entry.* or comment.created")
	watch.Flags().StringVar(&queue, "queue", "", "durable queue name to consume from")

	cmd.AddCommand(watch)
	return cmd
}

func formatEvent(ev mq.ActivityEvent) string {
	s := fmt.Sprintf("%s %-18s actor=%s", ev.At.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.Actor)
	if ev.Project != "" {
		s += " project=" + ev.Project
	}
	if ev.EntryID != 0 {
		s += fmt.Sprintf(" entry=%d", ev.EntryID)
	}
	if ev.TopicID != 0 {
		s += fmt.Sprintf(" topic=%d", ev.TopicID)
	}
	return s
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/publish"
	"intake/internal/services/chat"
	"intake/internal/store"
)

func newDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Publish queued jobs without fetching new responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				client := chat.NewRESTClient(cfg, logger)
				notifier := notifications.NewService(cfg)
				processor := publish.NewProcessor(st, client, notifier, metrics.New(), cfg, logger)

				summary, err := processor.Drain(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if summary.Busy {
					fmt.Fprintln(out, "Queue drain already in progress")
					return nil
				}
				fmt.Fprintf(out, "Posted %d of %d jobs, %d remaining\n", summary.Posted, summary.QueuedBefore, summary.Remaining)
				if summary.FailedJobID != "" {
					fmt.Fprintf(out, "Job %s halted the queue: %s\n", summary.FailedJobID, summary.FailedError)
				}
				return nil
			})
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intake/internal/intake"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/publish"
	"intake/internal/services/chat"
	"intake/internal/services/sheets"
	"intake/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var skipDrain bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch responses, queue new rows, and publish them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			if err != nil {
				return err
			}
			source, err := sheets.NewSource(cfg)
			if err != nil {
				return err
			}

			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				out := cmd.OutOrStdout()

				snapshot, err := source.ReadAllRows(cmd.Context())
				if err != nil {
					return fmt.Errorf("read responses: %w", err)
				}

				summary, err := intake.NewIngestor(st, logger).IngestRows(cmd.Context(), snapshot)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Scanned %d rows, queued %d, skipped %d\n", summary.Rows, summary.Queued, summary.Skipped)

				if skipDrain {
					return nil
				}

				client := chat.NewRESTClient(cfg, logger)
				notifier := notifications.NewService(cfg)
				processor := publish.NewProcessor(st, client, notifier, metrics.New(), cfg, logger)
				drain, err := processor.Drain(cmd.Context())
				if err != nil {
					return err
				}
				if drain.Busy {
					fmt.Fprintln(out, "Queue drain already in progress")
					return nil
				}
				fmt.Fprintf(out, "Posted %d jobs, %d remaining\n", drain.Posted, drain.Remaining)
				if drain.FailedJobID != "" {
					fmt.Fprintf(out, "Job %s halted the queue: %s\n", drain.FailedJobID, drain.FailedError)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipDrain, "no-drain", false, "Queue new rows without publishing them")
	return cmd
}

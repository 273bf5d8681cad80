package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"intake/internal/store"
)

func newAppsCommand(ctx *commandContext) *cobra.Command {
	appsCmd := &cobra.Command{
		Use:   "apps",
		Short: "Inspect tracked applications",
	}

	appsCmd.AddCommand(newAppsListCommand(ctx))
	appsCmd.AddCommand(newAppsShowCommand(ctx))

	return appsCmd
}

func newAppsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []store.Status
			for _, value := range listStatuses {
				status, ok := store.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				apps, err := st.ListApplications(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(apps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No applications found")
					return nil
				}

				rows := make([][]string, 0, len(apps))
				for _, app := range apps {
					rows = append(rows, []string{
						app.ApplicationID,
						app.ApplicantName,
						app.TrackKey,
						string(app.Status),
						formatTime(&app.CreatedAt),
						formatTime(app.DecidedAt),
					})
				}
				table := renderTable(
					[]string{"Application", "Applicant", "Track", "Status", "Created", "Decided"},
					rows,
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newAppsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <application-or-message-id>",
		Short: "Show one application in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				app, err := findApplication(cmd, st, args[0])
				if err != nil {
					return err
				}
				if app == nil {
					return fmt.Errorf("application %q not found", args[0])
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(app)
				}
				printApplication(cmd, app)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw record as JSON")
	return cmd
}

// findApplication resolves an argument as a message id first, then as an
// application id.
func findApplication(cmd *cobra.Command, st *store.Store, arg string) (*store.Application, error) {
	arg = strings.TrimSpace(arg)
	app, err := st.GetApplication(cmd.Context(), arg)
	if err != nil || app != nil {
		return app, err
	}

	apps, err := st.ListApplications(cmd.Context())
	if err != nil {
		return nil, err
	}
	for _, candidate := range apps {
		if candidate.ApplicationID == arg {
			return candidate, nil
		}
	}
	return nil, nil
}

func printApplication(cmd *cobra.Command, app *store.Application) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Application:  %s\n", app.ApplicationID)
	fmt.Fprintf(out, "Message:      %s (channel %s)\n", app.MessageID, app.ChannelID)
	if app.ThreadID != "" {
		fmt.Fprintf(out, "Thread:       %s\n", app.ThreadID)
	}
	fmt.Fprintf(out, "Track:        %s\n", app.TrackKey)
	fmt.Fprintf(out, "Status:       %s\n", app.Status)
	fmt.Fprintf(out, "Applicant:    %s", app.ApplicantName)
	if app.ApplicantUserID != "" {
		fmt.Fprintf(out, " (%s)", app.ApplicantUserID)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created:      %s\n", formatTime(&app.CreatedAt))

	if app.Status.Decided() {
		fmt.Fprintf(out, "Decided:      %s by %s via %s\n", formatTime(app.DecidedAt), app.DecidedBy, app.DecisionSource)
		if app.DecisionReason != "" {
			fmt.Fprintf(out, "Reason:       %s\n", app.DecisionReason)
		}
		if app.VoteContext != nil {
			fmt.Fprintf(out, "Vote:         %d accept / %d deny of %d eligible (threshold %d)\n",
				app.VoteContext.Accept, app.VoteContext.Deny, app.VoteContext.Eligible, app.VoteContext.Threshold)
		}
	}
	if app.ReopenedAt != nil {
		fmt.Fprintf(out, "Reopened:     %s by %s\n", formatTime(app.ReopenedAt), app.ReopenedBy)
	}
	if app.ClosedAt != nil {
		fmt.Fprintf(out, "Closed:       %s by %s\n", formatTime(app.ClosedAt), app.ClosedBy)
		if app.CloseReason != "" {
			fmt.Fprintf(out, "Close reason: %s\n", app.CloseReason)
		}
	}
	if app.ReminderCount > 0 {
		fmt.Fprintf(out, "Reminders:    %d (last %s)\n", app.ReminderCount, formatTime(app.LastReminderAt))
	}

	if len(app.SubmittedFields) > 0 {
		fmt.Fprintln(out)
		for _, field := range app.SubmittedFields {
			fmt.Fprintf(out, "  %s: %s\n", field.Label, field.Value)
		}
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intake/internal/decision"
	"intake/internal/store"
)

func newAcceptCommand(ctx *commandContext) *cobra.Command {
	var actor string
	var reason string
	var override bool

	cmd := &cobra.Command{
		Use:   "accept <application-or-message-id>",
		Short: "Force-accept an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFinalize(ctx, cmd, args[0], store.StatusAccepted, actor, reason, override)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "operator", "Identifier recorded as the deciding actor")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the decision")
	cmd.Flags().BoolVar(&override, "override-membership", false, "Accept even when the applicant is not in the guild (skips role grants)")
	return cmd
}

func newDenyCommand(ctx *commandContext) *cobra.Command {
	var actor string
	var reason string

	cmd := &cobra.Command{
		Use:   "deny <application-or-message-id>",
		Short: "Force-deny an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFinalize(ctx, cmd, args[0], store.StatusDenied, actor, reason, false)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "operator", "Identifier recorded as the deciding actor")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the decision and sent to the applicant")
	return cmd
}

func runFinalize(ctx *commandContext, cmd *cobra.Command, arg string, outcome store.Status, actor, reason string, override bool) error {
	return ctx.withWorkflow(cmd.Context(), func(st *store.Store, wf *decision.Workflow) error {
		app, err := findApplication(cmd, st, arg)
		if err != nil {
			return err
		}
		if app == nil {
			return fmt.Errorf("application %q not found", arg)
		}

		result, err := wf.Finalize(cmd.Context(), decision.FinalizeRequest{
			MessageID:          app.MessageID,
			Outcome:            outcome,
			Source:             decision.SourceForce,
			ActorID:            actor,
			Reason:             reason,
			OverrideMembership: override,
		})
		if err != nil {
			return err
		}
		printResult(cmd, app.ApplicationID, result)
		return nil
	})
}

func newReopenCommand(ctx *commandContext) *cobra.Command {
	var actor string
	var reason string

	cmd := &cobra.Command{
		Use:   "reopen <application-or-message-id>",
		Short: "Reopen a decided or closed application for a fresh vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkflow(cmd.Context(), func(st *store.Store, wf *decision.Workflow) error {
				app, err := findApplication(cmd, st, args[0])
				if err != nil {
					return err
				}
				if app == nil {
					return fmt.Errorf("application %q not found", args[0])
				}
				result, err := wf.Reopen(cmd.Context(), app.MessageID, actor, reason)
				if err != nil {
					return err
				}
				printResult(cmd, app.ApplicationID, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "operator", "Identifier recorded as the reopening actor")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the reopen")
	return cmd
}

func newCloseCommand(ctx *commandContext) *cobra.Command {
	var actor string
	var reason string

	cmd := &cobra.Command{
		Use:   "close <application-or-message-id>",
		Short: "Close an application administratively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkflow(cmd.Context(), func(st *store.Store, wf *decision.Workflow) error {
				app, err := findApplication(cmd, st, args[0])
				if err != nil {
					return err
				}
				if app == nil {
					return fmt.Errorf("application %q not found", args[0])
				}
				result, err := wf.Close(cmd.Context(), app.MessageID, actor, reason)
				if err != nil {
					return err
				}
				printResult(cmd, app.ApplicationID, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "operator", "Identifier recorded as the closing actor")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the close")
	return cmd
}

func printResult(cmd *cobra.Command, applicationID string, result decision.Result) {
	out := cmd.OutOrStdout()
	if result.OK {
		fmt.Fprintf(out, "Application %s is now %s\n", applicationID, result.Status)
		return
	}
	fmt.Fprintf(out, "No change to %s: %s\n", applicationID, result.Reason)
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent control actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				actions, err := st.ListControlActions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(actions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No control actions recorded")
					return nil
				}
				rows := make([][]string, 0, len(actions))
				for _, action := range actions {
					rows = append(rows, []string{
						action.At.UTC().Format("2006-01-02 15:04:05"),
						action.Actor,
						action.Action,
						truncate(action.Detail, 80),
					})
				}
				table := renderTable(
					[]string{"At", "Actor", "Action", "Detail"},
					rows,
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of actions to show")
	return cmd
}

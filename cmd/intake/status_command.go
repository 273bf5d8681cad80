package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"intake/internal/config"
	"intake/internal/daemon"
	"intake/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and application status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			printer := newStatusPrinter(stdout)

			status, err := fetchDaemonStatus(cmd, cfg)
			if err != nil && !errors.Is(err, errDaemonUnreachable) {
				return err
			}

			printer.Section("Daemon")
			if status == nil {
				printer.Line("Daemon", sevWarn, "not reachable; reading local state")
			} else {
				running := sevWarn
				detail := "stopped"
				if status.Running {
					running = sevOK
					detail = fmt.Sprintf("running (pid %d)", status.PID)
				}
				printer.Line("Daemon", running, detail)
				if status.LastPass != nil {
					printer.Line("Last pass", sevInfo, status.LastPass.UTC().Format(time.RFC3339))
				}
				if status.LastError != "" {
					printer.Line("Last error", sevError, status.LastError)
				}
			}
			printer.Blank()

			var health store.HealthSummary
			if status != nil {
				health = status.Health
			} else {
				if err := ctx.withStore(cmd.Context(), func(st *store.Store) error {
					summary, err := st.Health(cmd.Context())
					if err != nil {
						return err
					}
					health = summary
					return nil
				}); err != nil {
					return err
				}
			}

			printer.Section("Applications")
			rows := [][]string{
				{"Pending", fmt.Sprintf("%d", health.Pending)},
				{"Accepted", fmt.Sprintf("%d", health.Accepted)},
				{"Denied", fmt.Sprintf("%d", health.Denied)},
				{"Closed", fmt.Sprintf("%d", health.Closed)},
				{"Queued jobs", fmt.Sprintf("%d", health.QueuedJobs)},
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, 1))
			return nil
		},
	}
}

var errDaemonUnreachable = errors.New("daemon API unreachable")

func fetchDaemonStatus(cmd *cobra.Command, cfg *config.Config) (*daemon.Status, error) {
	bind := strings.TrimSpace(cfg.Daemon.APIBind)
	if bind == "" {
		return nil, errDaemonUnreachable
	}

	endpoint := "http://" + bind + "/api/status"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Daemon.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return nil, errDaemonUnreachable
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon API returned status %d", resp.StatusCode)
	}

	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

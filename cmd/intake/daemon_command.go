package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"intake/internal/daemon"
	"intake/internal/decision"
	"intake/internal/intake"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/publish"
	"intake/internal/services/chat"
	"intake/internal/services/sheets"
	"intake/internal/store"
	"intake/internal/votes"
	"intake/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the intake daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(ctx, cmd)
		},
	}
}

func runDaemonProcess(ctx *commandContext, cmd *cobra.Command) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("intake-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "intake.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer st.Close()
	if err := st.SaveSettings(signalCtx, store.SettingsFromConfig(cfg)); err != nil {
		return fmt.Errorf("sync settings: %w", err)
	}

	source, err := sheets.NewSource(cfg)
	if err != nil {
		return fmt.Errorf("init response source: %w", err)
	}

	client := chat.NewRESTClient(cfg, logger)
	notifier := notifications.NewService(cfg)
	m := metrics.New()

	ingestor := intake.NewIngestor(st, logger)
	processor := publish.NewProcessor(st, client, notifier, m, cfg, logger)
	decisions := decision.NewWorkflow(st, client, notifier, m, cfg, logger)
	evaluator := votes.NewEvaluator(st, client, decisions, cfg, logger)
	manager := workflow.NewManager(cfg, st, source, client, ingestor, processor, evaluator, notifier, m, logger)

	d, err := daemon.New(cfg, st, manager, m, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("intake daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

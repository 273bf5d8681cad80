package main

import (
	"context"
	"strings"
	"sync"

	"intake/internal/config"
	"intake/internal/decision"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/services/chat"
	"intake/internal/store"

	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// withStore opens the state database, syncs settings from the loaded config,
// and closes it when fn returns.
func (c *commandContext) withStore(ctx context.Context, fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SaveSettings(ctx, store.SettingsFromConfig(cfg)); err != nil {
		return err
	}
	return fn(st)
}

// withWorkflow additionally wires the chat client and decision workflow for
// commands that perform transitions with side effects.
func (c *commandContext) withWorkflow(ctx context.Context, fn func(*store.Store, *decision.Workflow) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	return c.withStore(ctx, func(st *store.Store) error {
		client := chat.NewRESTClient(cfg, logger)
		notifier := notifications.NewService(cfg)
		return fn(st, decision.NewWorkflow(st, client, notifier, metrics.New(), cfg, logger))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

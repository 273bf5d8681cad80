package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateChat(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateTracks(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateChat() error {
	if strings.TrimSpace(c.Chat.BaseURL) == "" {
		return errors.New("chat.base_url must be set")
	}
	if strings.TrimSpace(c.Chat.BotToken) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/intake/config.toml"
		}
		return fmt.Errorf("chat.bot_token is required; edit %s (create with 'intake config init')", defaultPath)
	}
	if c.Chat.RequestTimeout <= 0 {
		return errors.New("chat.request_timeout must be positive")
	}
	if c.Chat.MaxRetryAttempts < 1 {
		return errors.New("chat.max_retry_attempts must be at least 1")
	}
	if strings.TrimSpace(c.Chat.AcceptEmoji) == "" || strings.TrimSpace(c.Chat.DenyEmoji) == "" {
		return errors.New("chat.accept_emoji and chat.deny_emoji must be set")
	}
	if c.Chat.AcceptEmoji == c.Chat.DenyEmoji {
		return errors.New("chat.accept_emoji and chat.deny_emoji must differ")
	}
	return nil
}

func (c *Config) validateSource() error {
	if strings.TrimSpace(c.Source.URL) == "" && strings.TrimSpace(c.Source.Path) == "" {
		return errors.New("source.url or source.path must be set")
	}
	return nil
}

func (c *Config) validateTracks() error {
	if len(c.Tracks) == 0 {
		return errors.New("at least one [[tracks]] entry must be configured")
	}
	seen := make(map[string]struct{}, len(c.Tracks))
	for _, track := range c.Tracks {
		if track.Key == "" {
			return errors.New("tracks.key must be set")
		}
		if _, dup := seen[track.Key]; dup {
			return fmt.Errorf("duplicate track key %q", track.Key)
		}
		seen[track.Key] = struct{}{}
		if err := validateVoteRule(track.Key, track.Vote); err != nil {
			return err
		}
	}
	if c.DefaultTrack != "" {
		if _, ok := c.TrackByKey(c.DefaultTrack); !ok {
			return fmt.Errorf("default_track %q does not match any configured track", c.DefaultTrack)
		}
	}
	return nil
}

func validateVoteRule(key string, rule VoteRule) error {
	if rule.Numerator < 1 {
		return fmt.Errorf("track %s: vote.numerator must be at least 1", key)
	}
	if rule.Denominator < rule.Numerator {
		return fmt.Errorf("track %s: vote.denominator must be >= numerator", key)
	}
	if rule.MinimumVotes < 1 {
		return fmt.Errorf("track %s: vote.minimum_votes must be at least 1", key)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.SourcePollInterval <= 0 {
		return errors.New("workflow.source_poll_interval must be positive")
	}
	if c.Workflow.ReactionPollInterval <= 0 {
		return errors.New("workflow.reaction_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

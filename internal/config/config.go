package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Chat contains the chat-platform connection settings.
type Chat struct {
	BaseURL           string `toml:"base_url"`
	BotToken          string `toml:"bot_token"`
	GuildID           string `toml:"guild_id"`
	RequestTimeout    int    `toml:"request_timeout"`
	MaxRetryAttempts  int    `toml:"max_retry_attempts"`
	AcceptEmoji       string `toml:"accept_emoji"`
	DenyEmoji         string `toml:"deny_emoji"`
	HistoryChannelID  string `toml:"history_channel_id"`
	WarningsChannelID string `toml:"warnings_channel_id"`
}

// Source contains the response-source (form submissions) settings.
type Source struct {
	URL            string `toml:"url"`
	Path           string `toml:"path"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Track binds an application category to its channel, roles, and vote rule.
type Track struct {
	Key               string   `toml:"key"`
	Label             string   `toml:"label"`
	ChannelID         string   `toml:"channel_id"`
	AnnounceChannelID string   `toml:"announce_channel_id"`
	ApprovedRoleIDs   []string `toml:"approved_role_ids"`
	VoterRoleIDs      []string `toml:"voter_role_ids"`
	Aliases           []string `toml:"aliases"`
	Vote              VoteRule `toml:"vote"`
}

// VoteRule defines the supermajority fraction and absolute floor for a track.
type VoteRule struct {
	Numerator    int `toml:"numerator"`
	Denominator  int `toml:"denominator"`
	MinimumVotes int `toml:"minimum_votes"`
}

// Templates holds operator-editable message templates. Placeholders like
// {user}, {track}, and {application_id} are substituted before sending.
type Templates struct {
	AcceptAnnouncement string `toml:"accept_announcement"`
	DenyDM             string `toml:"deny_dm"`
	Reminder           string `toml:"reminder"`
	ReopenNotice       string `toml:"reopen_notice"`
}

// Workflow contains daemon polling intervals, in seconds unless noted.
type Workflow struct {
	SourcePollInterval   int `toml:"source_poll_interval"`
	ReactionPollInterval int `toml:"reaction_poll_interval"`
	ErrorRetryInterval   int `toml:"error_retry_interval"`
	ReminderAfterHours   int `toml:"reminder_after_hours"`
	ReminderEveryHours   int `toml:"reminder_every_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queue          bool   `toml:"queue"`
	Decisions      bool   `toml:"decisions"`
	Errors         bool   `toml:"errors"`
}

// Daemon contains the local API settings.
type Daemon struct {
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the intake engine.
type Config struct {
	Paths           Paths         `toml:"paths"`
	Chat            Chat          `toml:"chat"`
	Source          Source        `toml:"source"`
	Tracks          []Track       `toml:"tracks"`
	DefaultTrack    string        `toml:"default_track"`
	ReviewerMention string        `toml:"reviewer_mention"`
	Templates       Templates     `toml:"templates"`
	Workflow        Workflow      `toml:"workflow"`
	Notifications   Notifications `toml:"notifications"`
	Daemon          Daemon        `toml:"daemon"`
	Logging         Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/intake/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
// Returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("intake.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// TrackByKey returns the configured track with the given key.
func (c *Config) TrackByKey(key string) (Track, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, track := range c.Tracks {
		if strings.ToLower(track.Key) == key {
			return track, true
		}
	}
	return Track{}, false
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Source.Path, err = expandPath(c.Source.Path); err != nil {
		return err
	}

	c.Chat.BaseURL = strings.TrimRight(strings.TrimSpace(c.Chat.BaseURL), "/")
	c.DefaultTrack = strings.ToLower(strings.TrimSpace(c.DefaultTrack))
	for i := range c.Tracks {
		c.Tracks[i].Key = strings.ToLower(strings.TrimSpace(c.Tracks[i].Key))
		if c.Tracks[i].Label == "" {
			c.Tracks[i].Label = c.Tracks[i].Key
		}
		for j, alias := range c.Tracks[i].Aliases {
			c.Tracks[i].Aliases[j] = strings.ToLower(strings.TrimSpace(alias))
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}

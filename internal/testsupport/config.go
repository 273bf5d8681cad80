package testsupport

import (
	"path/filepath"
	"testing"

	"intake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories and two
// voting tracks per test. It applies any provided options last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Chat.BaseURL = "http://127.0.0.1:0"
	cfg.Chat.BotToken = "test-token"
	cfg.Chat.GuildID = "guild-1"
	cfg.Chat.HistoryChannelID = "chan-history"
	cfg.Chat.WarningsChannelID = "chan-warnings"
	cfg.Source.Path = filepath.Join(base, "responses.csv")
	cfg.Daemon.APIBind = "127.0.0.1:0"
	cfg.DefaultTrack = "member"
	cfg.Tracks = []config.Track{
		{
			Key:               "moderator",
			Label:             "Moderator",
			ChannelID:         "chan-mod",
			AnnounceChannelID: "chan-announce",
			ApprovedRoleIDs:   []string{"role-mod"},
			VoterRoleIDs:      []string{"role-voter"},
			Aliases:           []string{"mod"},
			Vote:              config.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3},
		},
		{
			Key:       "member",
			Label:     "Member",
			ChannelID: "chan-member",
			Vote:      config.VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1},
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTracks replaces the default test tracks.
func WithTracks(tracks ...config.Track) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tracks = tracks
	}
}

// WithDefaultTrack overrides the fallback track key.
func WithDefaultTrack(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.DefaultTrack = key
	}
}

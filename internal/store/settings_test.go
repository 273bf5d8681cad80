package store

import (
	"context"
	"path/filepath"
	"testing"

	"intake/internal/config"
)

func TestNormalizeSettingsLegacyV1Shape(t *testing.T) {
	payload := []byte(`{
        "defaultTrack": "Moderator",
        "reviewerMention": "@reviewers",
        "acceptTemplate": "welcome {user}",
        "denyTemplate": "sorry {user}",
        "tracks": [
            {
                "key": "Moderator",
                "label": "Moderator",
                "channel": "chan-1",
                "announceChannel": "chan-2",
                "approvedRoles": ["role-1"],
                "voterRoles": ["role-2"],
                "aliases": ["mod"],
                "voteFraction": "2/3",
                "voteMinimum": 3
            }
        ]
    }`)

	settings := normalizeSettings(1, payload)
	track, ok := settings.Track("moderator")
	if !ok {
		t.Fatalf("legacy track missing: %+v", settings.Tracks)
	}
	if track.ChannelID != "chan-1" || track.AnnounceChannelID != "chan-2" {
		t.Fatalf("channels lost: %+v", track)
	}
	if track.Vote != (VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3}) {
		t.Fatalf("vote rule not migrated: %+v", track.Vote)
	}
	if settings.DefaultTrack != "moderator" {
		t.Fatalf("default track not lowered: %q", settings.DefaultTrack)
	}
	if settings.Templates.AcceptAnnouncement != "welcome {user}" {
		t.Fatalf("templates lost: %+v", settings.Templates)
	}
}

func TestNormalizeSettingsLegacyBadFraction(t *testing.T) {
	payload := []byte(`{"tracks":[{"key":"builder","voteFraction":"3/2","voteMinimum":0}]}`)
	settings := normalizeSettings(0, payload)
	track, ok := settings.Track("builder")
	if !ok {
		t.Fatal("track missing")
	}
	// Invalid fraction and floor fall back to the minimal valid rule.
	if track.Vote != (VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1}) {
		t.Fatalf("expected fallback rule, got %+v", track.Vote)
	}
}

func TestNormalizeSettingsMalformedSelfHeals(t *testing.T) {
	settings := normalizeSettings(settingsVersion, []byte(`{not json`))
	if settings.Tracks == nil || len(settings.Tracks) != 0 {
		t.Fatalf("expected empty settings, got %+v", settings)
	}

	settings = normalizeSettings(settingsVersion, nil)
	if settings.Tracks == nil {
		t.Fatal("expected initialized track map")
	}
}

func TestSettingsSaveLoadRoundTrip(t *testing.T) {
	s, err := OpenPath(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// Fresh store yields empty settings, not an error.
	initial, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(initial.Tracks) != 0 {
		t.Fatalf("expected empty settings, got %+v", initial)
	}

	settings := emptySettings()
	settings.DefaultTrack = "builder"
	settings.Tracks["builder"] = TrackSettings{
		Key:       "builder",
		ChannelID: "chan-9",
		Vote:      VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 2},
	}
	if err := s.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	loaded, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	track, ok := loaded.Track("builder")
	if !ok || track.ChannelID != "chan-9" {
		t.Fatalf("settings round trip failed: %+v", loaded)
	}
	if loaded.DefaultTrack != "builder" {
		t.Fatalf("default track lost: %q", loaded.DefaultTrack)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultTrack = "moderator"
	cfg.Tracks = []config.Track{{
		Key:       "moderator",
		Label:     "Moderator",
		ChannelID: "chan-1",
		Aliases:   []string{"mod"},
		Vote:      config.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3},
	}}

	settings := SettingsFromConfig(&cfg)
	track, ok := settings.Track("moderator")
	if !ok || track.Vote.MinimumVotes != 3 {
		t.Fatalf("config seed failed: %+v", settings)
	}
	if settings.Templates.AcceptAnnouncement == "" {
		t.Fatal("templates not seeded from defaults")
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// settingsVersion is the current persisted settings schema version.
const settingsVersion = 2

// VoteRule defines the supermajority fraction and absolute floor for a track.
type VoteRule struct {
	Numerator    int `json:"numerator"`
	Denominator  int `json:"denominator"`
	MinimumVotes int `json:"minimum_votes"`
}

// Valid reports whether the rule satisfies denominator >= numerator >= 1 and
// minimumVotes >= 1.
func (r VoteRule) Valid() bool {
	return r.Numerator >= 1 && r.Denominator >= r.Numerator && r.MinimumVotes >= 1
}

// TrackSettings binds one application category to its channels, roles, vote
// rule, and inference aliases.
type TrackSettings struct {
	Key               string   `json:"key"`
	Label             string   `json:"label"`
	ChannelID         string   `json:"channel_id"`
	AnnounceChannelID string   `json:"announce_channel_id,omitempty"`
	ApprovedRoleIDs   []string `json:"approved_role_ids,omitempty"`
	VoterRoleIDs      []string `json:"voter_role_ids,omitempty"`
	Aliases           []string `json:"aliases,omitempty"`
	Vote              VoteRule `json:"vote"`
}

// Templates holds the operator-editable message templates.
type Templates struct {
	AcceptAnnouncement string `json:"accept_announcement"`
	DenyDM             string `json:"deny_dm"`
	Reminder           string `json:"reminder"`
	ReopenNotice       string `json:"reopen_notice"`
}

// Settings is the operator-configured portion of the persisted state.
type Settings struct {
	DefaultTrack    string                   `json:"default_track"`
	ReviewerMention string                   `json:"reviewer_mention,omitempty"`
	Tracks          map[string]TrackSettings `json:"tracks"`
	Templates       Templates                `json:"templates"`
}

// Track returns the settings for the given key.
func (s *Settings) Track(key string) (TrackSettings, bool) {
	track, ok := s.Tracks[strings.ToLower(strings.TrimSpace(key))]
	return track, ok
}

// TrackKeys returns the configured track keys in sorted order, so callers
// iterating tracks behave deterministically.
func (s *Settings) TrackKeys() []string {
	keys := make([]string, 0, len(s.Tracks))
	for key := range s.Tracks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// normalizeSettings decodes a persisted settings payload of any known version
// into the current shape. Malformed payloads self-heal to empty settings
// rather than failing the read; each legacy version has an explicit decoder.
func normalizeSettings(version int, payload []byte) Settings {
	if len(payload) == 0 {
		return emptySettings()
	}
	switch version {
	case 0, 1:
		return normalizeSettingsV1(payload)
	default:
		var settings Settings
		if err := json.Unmarshal(payload, &settings); err != nil {
			return emptySettings()
		}
		return healSettings(settings)
	}
}

// settingsV1 is the legacy persisted shape: tracks as a list, vote rules as
// "2/3" fraction strings with a separate floor, flat template keys.
type settingsV1 struct {
	DefaultTrack    string `json:"defaultTrack"`
	ReviewerMention string `json:"reviewerMention"`
	Tracks          []struct {
		Key           string   `json:"key"`
		Label         string   `json:"label"`
		Channel       string   `json:"channel"`
		Announce      string   `json:"announceChannel"`
		ApprovedRoles []string `json:"approvedRoles"`
		VoterRoles    []string `json:"voterRoles"`
		Aliases       []string `json:"aliases"`
		VoteFraction  string   `json:"voteFraction"`
		VoteMinimum   int      `json:"voteMinimum"`
	} `json:"tracks"`
	AcceptTemplate string `json:"acceptTemplate"`
	DenyTemplate   string `json:"denyTemplate"`
}

func normalizeSettingsV1(payload []byte) Settings {
	var legacy settingsV1
	if err := json.Unmarshal(payload, &legacy); err != nil {
		return emptySettings()
	}
	settings := emptySettings()
	settings.DefaultTrack = strings.ToLower(strings.TrimSpace(legacy.DefaultTrack))
	settings.ReviewerMention = legacy.ReviewerMention
	settings.Templates.AcceptAnnouncement = legacy.AcceptTemplate
	settings.Templates.DenyDM = legacy.DenyTemplate
	for _, track := range legacy.Tracks {
		key := strings.ToLower(strings.TrimSpace(track.Key))
		if key == "" {
			continue
		}
		settings.Tracks[key] = TrackSettings{
			Key:               key,
			Label:             track.Label,
			ChannelID:         track.Channel,
			AnnounceChannelID: track.Announce,
			ApprovedRoleIDs:   track.ApprovedRoles,
			VoterRoleIDs:      track.VoterRoles,
			Aliases:           track.Aliases,
			Vote:              parseVoteFraction(track.VoteFraction, track.VoteMinimum),
		}
	}
	return healSettings(settings)
}

// parseVoteFraction converts the legacy "numerator/denominator" form.
func parseVoteFraction(fraction string, minimum int) VoteRule {
	rule := VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1}
	if minimum >= 1 {
		rule.MinimumVotes = minimum
	}
	parts := strings.SplitN(strings.TrimSpace(fraction), "/", 2)
	if len(parts) == 2 {
		var num, den int
		if _, err := fmt.Sscanf(parts[0], "%d", &num); err == nil {
			if _, err := fmt.Sscanf(parts[1], "%d", &den); err == nil && num >= 1 && den >= num {
				rule.Numerator = num
				rule.Denominator = den
			}
		}
	}
	return rule
}

func healSettings(settings Settings) Settings {
	if settings.Tracks == nil {
		settings.Tracks = map[string]TrackSettings{}
	}
	for key, track := range settings.Tracks {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if track.Key == "" {
			track.Key = normalized
		}
		if track.Label == "" {
			track.Label = track.Key
		}
		if !track.Vote.Valid() {
			track.Vote = VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1}
		}
		if normalized != key {
			delete(settings.Tracks, key)
		}
		settings.Tracks[normalized] = track
	}
	settings.DefaultTrack = strings.ToLower(strings.TrimSpace(settings.DefaultTrack))
	if _, ok := settings.Tracks[settings.DefaultTrack]; !ok {
		settings.DefaultTrack = ""
	}
	return settings
}

func emptySettings() Settings {
	return Settings{Tracks: map[string]TrackSettings{}}
}

package intake

import (
	"strings"

	"intake/internal/store"
)

// Header hint tiers for track inference. A tier is only consulted when every
// higher tier produced nothing, because forms name this column inconsistently.
var (
	tierSelection = []string{"what are you applying", "applying for"}
	tierRole      = []string{"apply", "application", "track", "position", "role"}
	tierTeam      = []string{"department", "team", "type"}
)

// InferTracks resolves the target track keys for a response row.
//
// It checks, in order: an explicit "applying for" selection column, columns
// hinting at a role or track, columns hinting at a department or team, and
// finally every answered cell for a track alias. When nothing matches it
// returns the configured default track, or nil if none is set.
func InferTracks(settings *store.Settings, headers, row []string) []string {
	for _, hints := range [][]string{tierSelection, tierRole, tierTeam} {
		if keys := matchColumns(settings, headers, row, hints); len(keys) > 0 {
			return keys
		}
	}

	// Last resort before the default: any answered cell naming a track.
	var keys []string
	seen := make(map[string]bool)
	for _, cell := range row {
		for _, key := range matchTracks(settings, cell) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	if len(keys) > 0 {
		return keys
	}

	if settings.DefaultTrack != "" {
		return []string{settings.DefaultTrack}
	}
	return nil
}

func matchColumns(settings *store.Settings, headers, row []string, hints []string) []string {
	var keys []string
	seen := make(map[string]bool)
	for i, header := range headers {
		if i >= len(row) {
			break
		}
		label := strings.ToLower(header)
		matched := false
		for _, hint := range hints {
			if strings.Contains(label, hint) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, key := range matchTracks(settings, row[i]) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// matchTracks returns the keys of every configured track whose key, label, or
// alias appears in the cell value. Keys come back in settings order so
// multi-track rows enqueue deterministically.
func matchTracks(settings *store.Settings, value string) []string {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return nil
	}
	var keys []string
	for _, key := range settings.TrackKeys() {
		track := settings.Tracks[key]
		if matchesTrack(track, needle) {
			keys = append(keys, key)
		}
	}
	return keys
}

func matchesTrack(track store.TrackSettings, needle string) bool {
	candidates := append([]string{track.Key, track.Label}, track.Aliases...)
	for _, candidate := range candidates {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate != "" && strings.Contains(needle, candidate) {
			return true
		}
	}
	return false
}

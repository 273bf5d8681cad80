package intake

import "strings"

// Column hint sets used to locate identity-bearing cells. Matching is
// case-insensitive substring search over header labels.
var (
	timestampHints = []string{"timestamp"}
	userIDHints    = []string{"user id", "userid", "discord id"}
	nameHints      = []string{"username", "user name", "discord", "name"}
	handleHints    = []string{"ign", "in-game", "in game", "gamertag", "handle", "minecraft"}
	targetHints    = []string{"applying for", "apply for", "application for", "what are you applying"}
)

// ResponseKey derives a stable identity for a response row.
//
// When the row carries a timestamp it combines timestamp, submitter id,
// display name, in-context handle and declared target, which survives sheet
// re-ordering. Without a timestamp it falls back to joining every non-empty
// cell, which survives forms that lack one. An empty string means the row has
// no usable signal and must be tracked by position instead.
func ResponseKey(headers, row []string) string {
	if timestamp := findValue(headers, row, timestampHints); timestamp != "" {
		parts := []string{
			normalizeCell(timestamp),
			normalizeCell(findValue(headers, row, userIDHints)),
			normalizeCell(findValue(headers, row, nameHints)),
			normalizeCell(findValue(headers, row, handleHints)),
			normalizeCell(findValue(headers, row, targetHints)),
		}
		return strings.Join(parts, "|")
	}

	var parts []string
	for _, cell := range row {
		if normalized := normalizeCell(cell); normalized != "" {
			parts = append(parts, normalized)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "|")
}

// Blank reports whether every cell in the row is effectively empty.
func Blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// findValue checks hints in priority order across all headers, so a specific
// hint ("username") beats a looser one ("discord") regardless of column order.
func findValue(headers, row []string, hints []string) string {
	for _, hint := range hints {
		for i, header := range headers {
			if i >= len(row) {
				break
			}
			label := strings.ToLower(strings.TrimSpace(header))
			if !strings.Contains(label, hint) {
				continue
			}
			if value := strings.TrimSpace(row[i]); value != "" {
				return value
			}
		}
	}
	return ""
}

func normalizeCell(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

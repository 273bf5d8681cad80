package intake

import (
	"context"
	"path/filepath"
	"testing"

	"intake/internal/logging"
	"intake/internal/services/sheets"
	"intake/internal/store"
)

func testSettings() store.Settings {
	settings := store.Settings{
		DefaultTrack: "member",
		Tracks:       map[string]store.TrackSettings{},
	}
	settings.Tracks["moderator"] = store.TrackSettings{
		Key: "moderator", Label: "Moderator", Aliases: []string{"mod"},
		ChannelID: "chan-mod",
		Vote:      store.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3},
	}
	settings.Tracks["builder"] = store.TrackSettings{
		Key: "builder", Label: "Builder",
		ChannelID: "chan-build",
		Vote:      store.VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 2},
	}
	settings.Tracks["member"] = store.TrackSettings{
		Key: "member", Label: "Member",
		ChannelID: "chan-member",
		Vote:      store.VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1},
	}
	return settings
}

func TestResponseKeyPrefersTimestampComposite(t *testing.T) {
	headers := []string{"Timestamp", "Discord Username", "Discord ID", "Applying For"}
	row := []string{"2026/01/02  10:00:00", "Ada#1", "1001", "Moderator"}

	key := ResponseKey(headers, row)
	want := "2026/01/02 10:00:00|1001|ada#1||moderator"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}

	// Re-ordering unrelated columns must not change the key.
	headers2 := []string{"Applying For", "Timestamp", "Discord ID", "Discord Username"}
	row2 := []string{"Moderator", "2026/01/02 10:00:00", "1001", "Ada#1"}
	if got := ResponseKey(headers2, row2); got != key {
		t.Fatalf("key unstable under column reorder: %q vs %q", got, key)
	}
}

func TestResponseKeyFallsBackToFullRow(t *testing.T) {
	headers := []string{"Name", "Why"}
	row := []string{"Ada", "Because  reasons"}
	if got := ResponseKey(headers, row); got != "ada|because reasons" {
		t.Fatalf("unexpected fallback key %q", got)
	}
}

func TestResponseKeyBlankRow(t *testing.T) {
	if got := ResponseKey([]string{"A", "B"}, []string{" ", ""}); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
	if !Blank([]string{" ", "\t"}) {
		t.Fatal("expected blank row")
	}
}

func TestInferTracksTiers(t *testing.T) {
	settings := testSettings()

	cases := []struct {
		name    string
		headers []string
		row     []string
		want    []string
	}{
		{
			name:    "explicit selection column",
			headers: []string{"Timestamp", "What are you applying for?"},
			row:     []string{"t", "Moderator and Builder"},
			want:    []string{"builder", "moderator"},
		},
		{
			name:    "role hint column",
			headers: []string{"Timestamp", "Desired Position"},
			row:     []string{"t", "mod"},
			want:    []string{"moderator"},
		},
		{
			name:    "team hint column",
			headers: []string{"Timestamp", "Department"},
			row:     []string{"t", "Builder"},
			want:    []string{"builder"},
		},
		{
			name:    "alias scan over answered cells",
			headers: []string{"Timestamp", "Tell us about yourself"},
			row:     []string{"t", "I want to be a mod here"},
			want:    []string{"moderator"},
		},
		{
			name:    "default track fallback",
			headers: []string{"Timestamp", "Why"},
			row:     []string{"t", "no signal at all"},
			want:    []string{"member"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InferTracks(&settings, tc.headers, tc.row)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestRowProfileAndFields(t *testing.T) {
	headers := []string{"Timestamp", "Discord Username", "Discord ID", "Why", "Empty"}
	row := []string{"t", "ada lovelace", "1001", "because", ""}

	profile := RowProfile(headers, row)
	if profile.Name != "Ada Lovelace" || profile.UserID != "1001" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	fields := SubmittedFields(headers, row)
	if len(fields) != 4 {
		t.Fatalf("expected 4 answered fields, got %v", fields)
	}
	if fields[3].Label != "Why" || fields[3].Value != "because" {
		t.Fatalf("unexpected field %+v", fields[3])
	}
}

func TestIngestRowsIsIdempotent(t *testing.T) {
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.SaveSettings(ctx, testSettings()); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	snapshot := &sheets.Snapshot{
		Headers: []string{"Timestamp", "Discord Username", "Applying For"},
		Rows: [][]string{
			{"2026/01/02 10:00:00", "ada#1", "Moderator"},
			{"", "", ""},
			{"2026/01/03 11:00:00", "grace#2", "Builder"},
		},
	}

	ing := NewIngestor(s, logging.NewNop())
	first, err := ing.IngestRows(ctx, snapshot)
	if err != nil {
		t.Fatalf("IngestRows: %v", err)
	}
	if first.Queued != 2 || first.Skipped != 1 {
		t.Fatalf("unexpected first pass %+v", first)
	}

	second, err := ing.IngestRows(ctx, snapshot)
	if err != nil {
		t.Fatalf("IngestRows: %v", err)
	}
	if second.Queued != 0 {
		t.Fatalf("second pass queued %d jobs, want 0", second.Queued)
	}

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].TrackKeys[0] != "moderator" {
		t.Fatalf("unexpected queue %+v", jobs)
	}
}

func TestIngestDedupesFallbackKeyedRows(t *testing.T) {
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.SaveSettings(ctx, testSettings()); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	// No timestamp column: the full-row fallback key still dedupes.
	snapshot := &sheets.Snapshot{
		Headers: []string{"A", "B"},
		Rows:    [][]string{{"x", "mod"}},
	}
	ing := NewIngestor(s, logging.NewNop())
	if _, err := ing.IngestRows(ctx, snapshot); err != nil {
		t.Fatalf("IngestRows: %v", err)
	}

	again, err := ing.IngestRows(ctx, snapshot)
	if err != nil {
		t.Fatalf("IngestRows: %v", err)
	}
	if again.Queued != 0 {
		t.Fatalf("keyed dedup failed: %+v", again)
	}
}

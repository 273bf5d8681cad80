package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"intake/internal/config"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// Store manages state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "intake.db")
	return OpenPath(dbPath)
}

// OpenPath opens the state database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// applyMigrations brings the schema up to date. Each embedded migration runs
// in its own transaction and is recorded in schema_migrations, so a partially
// migrated database resumes where it stopped.
func (s *Store) applyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(filepath.Base(name), ".sql")
		if applied[version] {
			continue
		}
		ddl, err := schemaFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := s.runMigration(ctx, version, string(ddl)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) runMigration(ctx context.Context, version, ddl string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// LoadSettings reads the persisted settings record, normalizing legacy
// payload shapes. A missing or malformed record yields empty settings.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, payload FROM settings WHERE id = 1`)
	var (
		version int
		payload sql.NullString
	)
	if err := row.Scan(&version, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emptySettings(), nil
		}
		return emptySettings(), fmt.Errorf("load settings: %w", err)
	}
	return normalizeSettings(version, []byte(payload.String)), nil
}

// SaveSettings persists the settings record at the current schema version.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	payload, err := json.Marshal(healSettings(settings))
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO settings (id, version, payload) VALUES (1, ?, ?)
         ON CONFLICT (id) DO UPDATE SET version = excluded.version, payload = excluded.payload`,
		settingsVersion,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SettingsFromConfig converts configured tracks and templates into the
// persisted settings shape, used to seed the store on daemon start.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := emptySettings()
	settings.DefaultTrack = cfg.DefaultTrack
	settings.ReviewerMention = cfg.ReviewerMention
	settings.Templates = Templates{
		AcceptAnnouncement: cfg.Templates.AcceptAnnouncement,
		DenyDM:             cfg.Templates.DenyDM,
		Reminder:           cfg.Templates.Reminder,
		ReopenNotice:       cfg.Templates.ReopenNotice,
	}
	for _, track := range cfg.Tracks {
		settings.Tracks[track.Key] = TrackSettings{
			Key:               track.Key,
			Label:             track.Label,
			ChannelID:         track.ChannelID,
			AnnounceChannelID: track.AnnounceChannelID,
			ApprovedRoleIDs:   track.ApprovedRoleIDs,
			VoterRoleIDs:      track.VoterRoleIDs,
			Aliases:           track.Aliases,
			Vote: VoteRule{
				Numerator:    track.Vote.Numerator,
				Denominator:  track.Vote.Denominator,
				MinimumVotes: track.Vote.MinimumVotes,
			},
		}
	}
	return healSettings(settings)
}

// Health aggregates application and queue counts for diagnostics.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM applications GROUP BY status`)
	if err != nil {
		return health, fmt.Errorf("application stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return health, err
		}
		health.Applications += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusAccepted:
			health.Accepted += count
		case StatusDenied:
			health.Denied += count
		case StatusClosed:
			health.Closed += count
		}
	}
	if err := rows.Err(); err != nil {
		return health, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM post_jobs`)
	if err := row.Scan(&health.QueuedJobs); err != nil {
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func scanTimePtr(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func marshalJSON(value any) any {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return string(data)
}

func unmarshalJSON(raw sql.NullString, target any) {
	if !raw.Valid || raw.String == "" {
		return
	}
	// Legacy or hand-edited payloads that fail to parse are dropped rather
	// than failing the whole read.
	_ = json.Unmarshal([]byte(raw.String), target)
}

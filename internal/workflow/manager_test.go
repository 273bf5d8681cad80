package workflow

import (
	"context"
	"os"
	"testing"
	"time"

	"intake/internal/config"
	"intake/internal/decision"
	"intake/internal/intake"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/publish"
	"intake/internal/services/chat"
	"intake/internal/services/sheets"
	"intake/internal/store"
	"intake/internal/testsupport"
	"intake/internal/votes"
)

type fixture struct {
	cfg     *config.Config
	store   *store.Store
	chat    *testsupport.FakeChat
	manager *Manager
}

func newFixture(t *testing.T, csv string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Source.Path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write responses: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewFakeChat()
	notifier := notifications.NewService(cfg)
	m := metrics.New()
	logger := logging.NewNop()

	source, err := sheets.NewSource(cfg)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	ingestor := intake.NewIngestor(st, logger)
	processor := publish.NewProcessor(st, fake, notifier, m, cfg, logger)
	workflowDecisions := decision.NewWorkflow(st, fake, notifier, m, cfg, logger)
	evaluator := votes.NewEvaluator(st, fake, workflowDecisions, cfg, logger)

	manager := NewManager(cfg, st, source, fake, ingestor, processor, evaluator, notifier, m, logger)
	return &fixture{cfg: cfg, store: st, chat: fake, manager: manager}
}

const responsesCSV = "Timestamp,Discord Username,Discord ID,Applying For\n" +
	"2026/01/02 10:00:00,ada,user-1,Moderator\n"

func TestSourcePassIngestsAndPublishes(t *testing.T) {
	f := newFixture(t, responsesCSV)
	ctx := context.Background()

	if err := f.manager.SourcePass(ctx); err != nil {
		t.Fatalf("SourcePass: %v", err)
	}

	apps, err := f.store.ListApplications(ctx)
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 1 || apps[0].TrackKey != "moderator" {
		t.Fatalf("unexpected applications %+v", apps)
	}
	if count, _ := f.store.CountJobs(ctx); count != 0 {
		t.Fatalf("queue not drained, %d jobs left", count)
	}

	// Re-running the pass is idempotent.
	if err := f.manager.SourcePass(ctx); err != nil {
		t.Fatalf("SourcePass: %v", err)
	}
	apps, _ = f.store.ListApplications(ctx)
	if len(apps) != 1 {
		t.Fatalf("second pass duplicated applications: %d", len(apps))
	}
	if f.manager.LastPass().IsZero() {
		t.Fatal("last pass timestamp not recorded")
	}
}

func TestReactionPassFinalizesVotedApplications(t *testing.T) {
	f := newFixture(t, responsesCSV)
	ctx := context.Background()
	if err := f.manager.SourcePass(ctx); err != nil {
		t.Fatalf("SourcePass: %v", err)
	}

	apps, _ := f.store.ListApplications(ctx)
	messageID := apps[0].MessageID
	f.chat.AddMember(chat.Member{ID: "user-1"})

	// 3 eligible voters with the moderator voter role, rule 2/3 min 3:
	// threshold 3, all three accept.
	v1 := chat.Member{ID: "v1", RoleIDs: []string{"role-voter"}}
	v2 := chat.Member{ID: "v2", RoleIDs: []string{"role-voter"}}
	v3 := chat.Member{ID: "v3", RoleIDs: []string{"role-voter"}}
	f.chat.SetViewers("chan-mod", v1, v2, v3)
	f.chat.SetReactors(messageID, f.cfg.Chat.AcceptEmoji, v1, v2, v3)

	if err := f.manager.ReactionPass(ctx); err != nil {
		t.Fatalf("ReactionPass: %v", err)
	}

	app, _ := f.store.GetApplication(ctx, messageID)
	if app.Status != store.StatusAccepted {
		t.Fatalf("expected accepted, got %s", app.Status)
	}
}

func TestReactionPassSendsReminders(t *testing.T) {
	f := newFixture(t, responsesCSV)
	ctx := context.Background()
	if err := f.manager.SourcePass(ctx); err != nil {
		t.Fatalf("SourcePass: %v", err)
	}

	apps, _ := f.store.ListApplications(ctx)
	app := apps[0]
	// Age the application past the first-reminder window.
	aged := time.Now().UTC().Add(-time.Duration(f.cfg.Workflow.ReminderAfterHours+1) * time.Hour)
	app.CreatedAt = aged
	if err := f.store.UpdateApplication(ctx, app); err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}

	before := len(f.chat.Messages)
	if err := f.manager.ReactionPass(ctx); err != nil {
		t.Fatalf("ReactionPass: %v", err)
	}

	reloaded, _ := f.store.GetApplication(ctx, app.MessageID)
	if reloaded.ReminderCount != 1 || reloaded.LastReminderAt == nil {
		t.Fatalf("reminder state %+v", reloaded)
	}
	if len(f.chat.Messages) != before+1 {
		t.Fatalf("expected one reminder message, got %d new", len(f.chat.Messages)-before)
	}
	if reloaded.ThreadID == "" {
		t.Fatalf("application has no thread: %+v", reloaded)
	}
	if sent := f.chat.Messages[len(f.chat.Messages)-1]; sent.ChannelID != reloaded.ThreadID {
		t.Fatalf("reminder went to %q, want thread %q", sent.ChannelID, reloaded.ThreadID)
	}

	// Within the repeat window nothing more goes out.
	if err := f.manager.ReactionPass(ctx); err != nil {
		t.Fatalf("ReactionPass: %v", err)
	}
	reloaded, _ = f.store.GetApplication(ctx, app.MessageID)
	if reloaded.ReminderCount != 1 {
		t.Fatalf("reminder repeated too soon: %d", reloaded.ReminderCount)
	}
}

func TestReminderDue(t *testing.T) {
	now := time.Now().UTC()
	after := 48 * time.Hour
	every := 24 * time.Hour

	fresh := &store.Application{CreatedAt: now.Add(-time.Hour)}
	if reminderDue(fresh, now, after, every) {
		t.Fatal("fresh application should not be due")
	}

	stale := &store.Application{CreatedAt: now.Add(-49 * time.Hour)}
	if !reminderDue(stale, now, after, every) {
		t.Fatal("stale application should be due")
	}

	recentReminder := now.Add(-time.Hour)
	reminded := &store.Application{CreatedAt: now.Add(-72 * time.Hour), LastReminderAt: &recentReminder}
	if reminderDue(reminded, now, after, every) {
		t.Fatal("recently reminded application should not be due")
	}

	// Reopen resets the anchor.
	reopenedAt := now.Add(-time.Hour)
	reopened := &store.Application{CreatedAt: now.Add(-300 * time.Hour), ReopenedAt: &reopenedAt}
	if reminderDue(reopened, now, after, every) {
		t.Fatal("recently reopened application should not be due")
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, responsesCSV)
	ctx := context.Background()

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.manager.Running() {
		t.Fatal("manager should report running")
	}
	if err := f.manager.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	f.manager.Stop()
	if f.manager.Running() {
		t.Fatal("manager should stop")
	}
	// Stop again is a no-op.
	f.manager.Stop()
}

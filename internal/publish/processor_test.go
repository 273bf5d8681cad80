package publish

import (
	"context"
	"testing"

	"intake/internal/config"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/services"
	"intake/internal/store"
	"intake/internal/testsupport"
)

type fixture struct {
	cfg       *config.Config
	store     *store.Store
	chat      *testsupport.FakeChat
	processor *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewFakeChat()
	proc := NewProcessor(st, fake, notifications.NewService(cfg), metrics.New(), cfg, logging.NewNop())
	return &fixture{cfg: cfg, store: st, chat: fake, processor: proc}
}

func (f *fixture) appendJob(t *testing.T, rowIndex int, tracks ...string) *store.Job {
	t.Helper()
	job := &store.Job{
		RowIndex:    rowIndex,
		TrackKeys:   tracks,
		ResponseKey: "key-" + string(rune('a'+rowIndex)),
		Headers:     []string{"Timestamp", "Discord Username", "Discord ID", "Why"},
		Row:         []string{"2026/01/02", "ada", "user-1", "because"},
	}
	if err := f.store.AppendJob(context.Background(), job); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}
	return job
}

func TestDrainPublishesInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appendJob(t, 2, "moderator")
	f.appendJob(t, 3, "member")

	summary, err := f.processor.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if summary.Busy || summary.Posted != 2 || summary.Failed != 0 || summary.Remaining != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if len(f.chat.Messages) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(f.chat.Messages))
	}
	if f.chat.Messages[0].ChannelID != "chan-mod" || f.chat.Messages[1].ChannelID != "chan-member" {
		t.Fatalf("publish order wrong: %+v", f.chat.Messages)
	}
	// Exactly two reaction sentinels per message.
	if len(f.chat.Reactions) != 4 {
		t.Fatalf("expected 4 reactions, got %d", len(f.chat.Reactions))
	}
	if len(f.chat.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(f.chat.Threads))
	}

	apps, err := f.store.ListApplications(ctx)
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}
	first := apps[0]
	if first.Status != store.StatusPending || first.ApplicationID != "000001-moderator" {
		t.Fatalf("unexpected application %+v", first)
	}
	if first.ApplicantName != "Ada" || first.ApplicantUserID != "user-1" {
		t.Fatalf("profile not carried: %+v", first)
	}

	count, _ := f.store.CountJobs(ctx)
	if count != 0 {
		t.Fatalf("queue should be empty, %d left", count)
	}
}

func TestDrainReportsBusyWhenHeld(t *testing.T) {
	f := newFixture(t)
	f.appendJob(t, 2, "moderator")

	f.processor.busy.Lock()
	defer f.processor.busy.Unlock()

	summary, err := f.processor.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !summary.Busy {
		t.Fatalf("expected busy, got %+v", summary)
	}
	if count, _ := f.store.CountJobs(context.Background()); count != 1 {
		t.Fatalf("busy drain must not touch the queue, %d jobs left", count)
	}
}

func TestDrainFailsWholeJobOnUnboundChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appendJob(t, 2, "moderator", "ghost")
	f.appendJob(t, 3, "member")

	summary, err := f.processor.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if summary.Failed != 1 || summary.Posted != 0 || summary.Remaining != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.FailedJobID != "000001" {
		t.Fatalf("failed job %q", summary.FailedJobID)
	}

	// Nothing published for either track, and the queue halted before the
	// healthy second job.
	if len(f.chat.Messages) != 0 {
		t.Fatalf("no messages expected, got %+v", f.chat.Messages)
	}

	head, err := f.store.HeadJob(ctx)
	if err != nil {
		t.Fatalf("HeadJob: %v", err)
	}
	if head.JobID != "000001" || head.Attempts != 1 || head.LastError == "" {
		t.Fatalf("failure not recorded on head job: %+v", head)
	}
}

func TestDrainResumesPartiallyPostedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.appendJob(t, 2, "moderator", "member")

	// First drain: moderator posts, member send fails, job halts.
	f.chat.SendErr["chan-member"] = services.Wrap(services.ErrTransient, "chat", "send", "boom", nil)
	summary, err := f.processor.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if summary.Posted != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	head, _ := f.store.HeadJob(ctx)
	if got := head.PendingTracks(); len(got) != 1 || got[0] != "member" {
		t.Fatalf("posted marker missing: %+v", head)
	}

	// Second drain resumes: only the member track publishes.
	delete(f.chat.SendErr, "chan-member")
	summary, err = f.processor.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if summary.Posted != 1 || summary.Failed != 0 || summary.Remaining != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if got := len(f.chat.MessagesTo("chan-mod")); got != 1 {
		t.Fatalf("moderator track double-posted: %d messages", got)
	}
	if got := len(f.chat.MessagesTo("chan-member")); got != 1 {
		t.Fatalf("member track posted %d times", got)
	}

	apps, _ := f.store.ListApplications(ctx)
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}
}

func TestDrainEmptyQueueNoops(t *testing.T) {
	f := newFixture(t)
	summary, err := f.processor.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if summary.QueuedBefore != 0 || summary.Posted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

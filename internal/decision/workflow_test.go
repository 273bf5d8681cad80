package decision

import (
	"context"
	"testing"

	"intake/internal/config"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/services/chat"
	"intake/internal/store"
	"intake/internal/testsupport"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	chat     *testsupport.FakeChat
	metrics  *metrics.Metrics
	workflow *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewFakeChat()
	m := metrics.New()
	wf := NewWorkflow(st, fake, notifications.NewService(cfg), m, cfg, logging.NewNop())
	return &fixture{cfg: cfg, store: st, chat: fake, metrics: m, workflow: wf}
}

func (f *fixture) putPending(t *testing.T, messageID string) *store.Application {
	t.Helper()
	app := &store.Application{
		MessageID:       messageID,
		ApplicationID:   "000001-moderator",
		ChannelID:       "chan-mod",
		ThreadID:        "thread-1",
		TrackKey:        "moderator",
		JobID:           "000001",
		ApplicantName:   "Ada",
		ApplicantUserID: "user-1",
	}
	if err := f.store.PutApplication(context.Background(), app); err != nil {
		t.Fatalf("PutApplication: %v", err)
	}
	return app
}

func TestFinalizeAcceptGrantsRolesAndAnnounces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")
	f.chat.AddMember(chat.Member{ID: "user-1", DisplayName: "Ada"})

	result, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1",
		Outcome:   store.StatusAccepted,
		Source:    SourceVote,
		ActorID:   "engine",
		VoteContext: &store.VoteContext{Accept: 7, Deny: 1, Eligible: 10, Threshold: 7,
			Rule: store.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3}},
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !result.OK || result.Status != store.StatusAccepted {
		t.Fatalf("unexpected result %+v", result)
	}

	app, err := f.store.GetApplication(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.Status != store.StatusAccepted || app.DecisionSource != SourceVote {
		t.Fatalf("unexpected application %+v", app)
	}
	if app.DecisionReason == "" || app.VoteContext == nil {
		t.Fatalf("decision context missing: %+v", app)
	}
	if len(app.RoleResults) != 1 || app.RoleResults[0].Status != store.StepOK {
		t.Fatalf("role results %+v", app.RoleResults)
	}
	if app.AcceptAnnounce == nil || app.AcceptAnnounce.Status != store.StepOK {
		t.Fatalf("announce result %+v", app.AcceptAnnounce)
	}

	if len(f.chat.Grants) != 1 || f.chat.Grants[0].RoleID != "role-mod" {
		t.Fatalf("grants %+v", f.chat.Grants)
	}
	if len(f.chat.MessagesTo("chan-announce")) != 1 {
		t.Fatalf("expected one announcement, got %+v", f.chat.Messages)
	}
	if len(f.chat.MessagesTo("chan-history")) != 1 {
		t.Fatal("expected history log entry")
	}
	if len(f.chat.Recolors) != 1 || f.chat.Recolors[0].Color != chat.ColorAccepted {
		t.Fatalf("recolors %+v", f.chat.Recolors)
	}
	if len(f.chat.Archived) != 1 {
		t.Fatalf("thread not archived: %+v", f.chat.Archived)
	}

	actions, err := f.store.ListControlActions(ctx, 0)
	if err != nil {
		t.Fatalf("ListControlActions: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != "finalize" {
		t.Fatalf("control actions %+v", actions)
	}
}

func TestFinalizeCountsDecisionsByStatusAndSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")
	f.chat.AddMember(chat.Member{ID: "user-1"})

	counter := f.metrics.Decisions.WithLabelValues(string(store.StatusAccepted), SourceForce)
	if got := testutil.ToFloat64(counter); got != 0 {
		t.Fatalf("counter before finalize = %v", got)
	}

	if _, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("counter after finalize = %v", got)
	}

	// A refused finalize (already decided) must not count.
	if _, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("refused finalize moved the counter to %v", got)
	}
}

func TestFinalizeRefusesUnknownAndDecided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-nope", Outcome: store.StatusDenied, Source: SourceForce, ActorID: "op"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.OK || result.Reason != ReasonUnknownApplication {
		t.Fatalf("unexpected result %+v", result)
	}

	f.putPending(t, "msg-1")
	f.chat.AddMember(chat.Member{ID: "user-1"})
	if _, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusDenied, Source: SourceForce, ActorID: "op"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	again, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if again.OK || again.Reason != ReasonAlreadyDecided || again.Status != store.StatusDenied {
		t.Fatalf("unexpected result %+v", again)
	}
}

func TestFinalizeAcceptBlockedForMissingMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")
	// user-1 never joins the guild.

	result, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.OK || result.Reason != ReasonMissingMember {
		t.Fatalf("unexpected result %+v", result)
	}

	app, err := f.store.GetApplication(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.Status != store.StatusPending {
		t.Fatalf("blocked accept must stay pending, got %s", app.Status)
	}
	if app.LastAcceptanceBlock != "missing_member:user-1" {
		t.Fatalf("block memory %q", app.LastAcceptanceBlock)
	}
	if len(f.chat.MessagesTo("chan-warnings")) != 1 {
		t.Fatalf("expected one warning, got %+v", f.chat.Messages)
	}

	// Same blocking condition again: refused, but no second warning.
	if _, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(f.chat.MessagesTo("chan-warnings")) != 1 {
		t.Fatal("warning must be deduplicated per blocking condition")
	}
}

func TestFinalizeAcceptWithMembershipOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")

	result, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce,
		ActorID: "op", OverrideMembership: true})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !result.OK {
		t.Fatalf("override accept refused: %+v", result)
	}

	app, _ := f.store.GetApplication(ctx, "msg-1")
	if len(app.RoleResults) != 1 || app.RoleResults[0].Status != store.StepSkipped {
		t.Fatalf("role results %+v", app.RoleResults)
	}
	if len(f.chat.Grants) != 0 {
		t.Fatalf("no role grants expected, got %+v", f.chat.Grants)
	}
}

func TestFinalizeDenySendsDM(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")

	result, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusDenied, Source: SourceForce,
		ActorID: "op", Reason: "incomplete answers"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !result.OK || result.Status != store.StatusDenied {
		t.Fatalf("unexpected result %+v", result)
	}

	if len(f.chat.DMs) != 1 || f.chat.DMs[0].UserID != "user-1" {
		t.Fatalf("dms %+v", f.chat.DMs)
	}
	app, _ := f.store.GetApplication(ctx, "msg-1")
	if app.DenyDM == nil || app.DenyDM.Status != store.StepOK {
		t.Fatalf("deny dm result %+v", app.DenyDM)
	}
	if app.DecisionReason != "incomplete answers" {
		t.Fatalf("reason %q", app.DecisionReason)
	}
}

func TestReopenSnapshotsAndClears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")
	f.chat.AddMember(chat.Member{ID: "user-1"})

	if _, err := f.workflow.Finalize(ctx, FinalizeRequest{
		MessageID: "msg-1", Outcome: store.StatusAccepted, Source: SourceForce, ActorID: "op"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	result, err := f.workflow.Reopen(ctx, "msg-1", "op2", "new evidence")
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if !result.OK || result.Status != store.StatusPending {
		t.Fatalf("unexpected result %+v", result)
	}

	app, _ := f.store.GetApplication(ctx, "msg-1")
	if app.Status != store.StatusPending {
		t.Fatalf("status %s", app.Status)
	}
	if app.LastDecision == nil || app.LastDecision.Status != store.StatusAccepted {
		t.Fatalf("last decision %+v", app.LastDecision)
	}
	if app.DecidedAt != nil || app.DecisionSource != "" || app.RoleResults != nil || app.VoteContext != nil {
		t.Fatalf("decision fields not cleared: %+v", app)
	}
	if app.ReopenedBy != "op2" || app.ReopenReason != "new evidence" {
		t.Fatalf("reopen metadata %+v", app)
	}

	again, err := f.workflow.Reopen(ctx, "msg-1", "op2", "again")
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if again.OK || again.Reason != ReasonAlreadyPending {
		t.Fatalf("unexpected result %+v", again)
	}
}

func TestCloseIsUnconditionalAndReopenable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putPending(t, "msg-1")

	result, err := f.workflow.Close(ctx, "msg-1", "op", "stale")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !result.OK || result.Status != store.StatusClosed {
		t.Fatalf("unexpected result %+v", result)
	}

	app, _ := f.store.GetApplication(ctx, "msg-1")
	if app.Status != store.StatusClosed || !app.AdminDone || app.ClosedBy != "op" {
		t.Fatalf("close fields %+v", app)
	}

	// closed -> pending via reopen clears the close stamps.
	reopened, err := f.workflow.Reopen(ctx, "msg-1", "op", "second look")
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if !reopened.OK {
		t.Fatalf("reopen refused: %+v", reopened)
	}
	app, _ = f.store.GetApplication(ctx, "msg-1")
	if app.Status != store.StatusPending || app.AdminDone || app.ClosedAt != nil {
		t.Fatalf("close stamps not cleared: %+v", app)
	}
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Welcome {user} to {track}! ({application_id})", map[string]string{
		"user": "Ada", "track": "Moderator", "application_id": "000001-moderator"})
	if out != "Welcome Ada to Moderator! (000001-moderator)" {
		t.Fatalf("unexpected render %q", out)
	}
	if got := RenderTemplate("{unknown} stays", map[string]string{"user": "x"}); got != "{unknown} stays" {
		t.Fatalf("unexpected render %q", got)
	}
}

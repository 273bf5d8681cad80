package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"intake/internal/config"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/services"
	"intake/internal/services/chat"
	"intake/internal/store"
)

// Decision sources recorded on finalized applications.
const (
	SourceVote  = "vote"
	SourceForce = "force"
)

// Result reports a transition attempt. A refused transition is not an error;
// the reason tells the caller why nothing changed.
type Result struct {
	OK     bool         `json:"ok"`
	Reason string       `json:"reason,omitempty"`
	Status store.Status `json:"status,omitempty"`
}

// Refusal reasons.
const (
	ReasonUnknownApplication = "unknown_application"
	ReasonAlreadyDecided     = "already_decided"
	ReasonAlreadyPending     = "already_pending"
	ReasonMissingMember      = "missing_member_not_in_guild"
)

// FinalizeRequest describes one accept/deny attempt.
type FinalizeRequest struct {
	MessageID string
	Outcome   store.Status
	Source    string
	ActorID   string
	Reason    string
	// VoteContext is set for vote-sourced decisions and stored on the
	// application.
	VoteContext *store.VoteContext
	// OverrideMembership lets an operator accept an applicant who is not in
	// the guild; role grants are skipped instead of blocking.
	OverrideMembership bool
}

// Workflow executes state transitions and their side effects.
type Workflow struct {
	store    *store.Store
	chat     chat.Client
	notifier notifications.Service
	metrics  *metrics.Metrics
	cfg      *config.Config
	logger   *slog.Logger
}

// NewWorkflow wires the decision workflow.
func NewWorkflow(st *store.Store, client chat.Client, notifier notifications.Service, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:    st,
		chat:     client,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "decision"),
	}
}

// Finalize transitions a pending application to accepted or denied.
func (w *Workflow) Finalize(ctx context.Context, req FinalizeRequest) (Result, error) {
	if !req.Outcome.Decided() {
		return Result{}, services.Wrap(services.ErrValidation, "decision", "finalize",
			fmt.Sprintf("outcome must be accepted or denied, got %q", req.Outcome), nil)
	}

	app, err := w.store.GetApplication(ctx, req.MessageID)
	if err != nil {
		return Result{}, err
	}
	if app == nil {
		return Result{Reason: ReasonUnknownApplication}, nil
	}
	if app.Status != store.StatusPending {
		return Result{Reason: ReasonAlreadyDecided, Status: app.Status}, nil
	}

	settings, err := w.store.LoadSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	track, _ := settings.Track(app.TrackKey)

	reason := req.Reason
	if reason == "" {
		reason = decisionReason(req)
	}

	var roleResults []store.RoleResult
	if req.Outcome == store.StatusAccepted {
		missing, err := w.applicantMissing(ctx, app)
		if err != nil {
			return Result{}, err
		}
		if missing && !req.OverrideMembership {
			return w.blockAcceptance(ctx, app, settings)
		}
		roleResults = w.grantRoles(ctx, app, track, missing)
	}

	now := time.Now().UTC()
	app.Status = req.Outcome
	app.DecidedAt = &now
	app.DecidedBy = req.ActorID
	app.DecisionSource = req.Source
	app.DecisionReason = reason
	app.VoteContext = req.VoteContext
	app.RoleResults = roleResults
	app.LastAcceptanceBlock = ""

	vars := w.templateVars(app, settings, track, reason, req.ActorID)
	switch req.Outcome {
	case store.StatusAccepted:
		app.AcceptAnnounce = w.announceAcceptance(ctx, app, settings, track, vars)
	case store.StatusDenied:
		app.DenyDM = w.sendDenialDM(ctx, app, settings, vars)
	}

	summary := fmt.Sprintf("Application %s %s. %s", app.ApplicationID, app.Status, reason)
	w.replyAndLog(ctx, app, summary)
	w.restyleMessage(ctx, app)
	w.archiveThread(ctx, app)

	if err := w.store.UpdateApplication(ctx, app); err != nil {
		return Result{}, err
	}
	if err := w.store.AppendControlAction(ctx, req.ActorID, "finalize",
		fmt.Sprintf("%s %s (%s)", app.ApplicationID, app.Status, req.Source)); err != nil {
		w.logger.Warn("record control action", logging.Error(err))
	}
	if err := w.notifier.NotifyDecision(ctx, app.ApplicationID, string(app.Status), req.Source); err != nil {
		w.logger.Warn("decision notification failed", logging.Error(err))
	}
	w.metrics.Decisions.WithLabelValues(string(app.Status), req.Source).Inc()

	w.logger.Info("application finalized",
		logging.String(logging.FieldMessageID, app.MessageID),
		logging.String("application_id", app.ApplicationID),
		logging.String("status", string(app.Status)),
		logging.String("source", req.Source))
	return Result{OK: true, Status: app.Status}, nil
}

// Reopen returns a decided or closed application to pending, snapshotting the
// outgoing decision. Side effects of the prior decision are not reverted.
func (w *Workflow) Reopen(ctx context.Context, messageID, actorID, reason string) (Result, error) {
	app, err := w.store.GetApplication(ctx, messageID)
	if err != nil {
		return Result{}, err
	}
	if app == nil {
		return Result{Reason: ReasonUnknownApplication}, nil
	}
	if app.Status == store.StatusPending {
		return Result{Reason: ReasonAlreadyPending, Status: app.Status}, nil
	}

	settings, err := w.store.LoadSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	track, _ := settings.Track(app.TrackKey)

	app.LastDecision = &store.DecisionSnapshot{
		Status:    app.Status,
		DecidedAt: app.DecidedAt,
		DecidedBy: app.DecidedBy,
		Source:    app.DecisionSource,
		Reason:    app.DecisionReason,
	}
	app.ClearDecision()

	now := time.Now().UTC()
	app.Status = store.StatusPending
	app.ReopenedAt = &now
	app.ReopenedBy = actorID
	app.ReopenReason = reason

	vars := w.templateVars(app, settings, track, reason, actorID)
	notice := RenderTemplate(settings.Templates.ReopenNotice, vars)
	if notice == "" {
		notice = fmt.Sprintf("Application %s reopened for review.", app.ApplicationID)
	}
	if _, err := w.chat.ReplyMessage(ctx, app.ChannelID, app.MessageID, notice); err != nil {
		w.logger.Warn("reopen notice failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
	}
	w.restyleMessage(ctx, app)

	if err := w.store.UpdateApplication(ctx, app); err != nil {
		return Result{}, err
	}
	if err := w.store.AppendControlAction(ctx, actorID, "reopen", app.ApplicationID); err != nil {
		w.logger.Warn("record control action", logging.Error(err))
	}

	w.logger.Info("application reopened",
		logging.String(logging.FieldMessageID, app.MessageID),
		logging.String("application_id", app.ApplicationID))
	return Result{OK: true, Status: store.StatusPending}, nil
}

// Close stamps an application closed from any state. Closing requires no
// channel access and never fails on side effects.
func (w *Workflow) Close(ctx context.Context, messageID, actorID, reason string) (Result, error) {
	app, err := w.store.GetApplication(ctx, messageID)
	if err != nil {
		return Result{}, err
	}
	if app == nil {
		return Result{Reason: ReasonUnknownApplication}, nil
	}

	now := time.Now().UTC()
	app.Status = store.StatusClosed
	app.ClosedAt = &now
	app.ClosedBy = actorID
	app.CloseReason = reason
	app.AdminDone = true

	w.restyleMessage(ctx, app)
	w.archiveThread(ctx, app)

	if err := w.store.UpdateApplication(ctx, app); err != nil {
		return Result{}, err
	}
	if err := w.store.AppendControlAction(ctx, actorID, "close", app.ApplicationID); err != nil {
		w.logger.Warn("record control action", logging.Error(err))
	}

	w.logger.Info("application closed",
		logging.String(logging.FieldMessageID, app.MessageID),
		logging.String("application_id", app.ApplicationID))
	return Result{OK: true, Status: store.StatusClosed}, nil
}

// applicantMissing reports whether the applicant cannot be resolved as a
// guild member.
func (w *Workflow) applicantMissing(ctx context.Context, app *store.Application) (bool, error) {
	if app.ApplicantUserID == "" {
		return true, nil
	}
	_, err := w.chat.Member(ctx, app.ApplicantUserID)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, services.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// blockAcceptance refuses an accept because the applicant left the guild,
// warning reviewers once per blocking condition.
func (w *Workflow) blockAcceptance(ctx context.Context, app *store.Application, settings store.Settings) (Result, error) {
	blockKey := "missing_member:" + app.ApplicantUserID
	if app.LastAcceptanceBlock != blockKey {
		warning := fmt.Sprintf("Cannot accept %s: applicant %s is not in the guild. Use a forced accept with override to proceed anyway.",
			app.ApplicationID, displayName(app))
		if settings.ReviewerMention != "" {
			warning = settings.ReviewerMention + " " + warning
		}
		channelID := w.cfg.Chat.WarningsChannelID
		if channelID == "" {
			channelID = app.ChannelID
		}
		if _, err := w.chat.SendMessage(ctx, channelID, warning); err != nil {
			w.logger.Warn("acceptance-block warning failed",
				logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
		}
		app.LastAcceptanceBlock = blockKey
		if err := w.store.UpdateApplication(ctx, app); err != nil {
			return Result{}, err
		}
	}
	return Result{Reason: ReasonMissingMember, Status: store.StatusPending}, nil
}

func (w *Workflow) grantRoles(ctx context.Context, app *store.Application, track store.TrackSettings, skip bool) []store.RoleResult {
	var results []store.RoleResult
	for _, roleID := range track.ApprovedRoleIDs {
		if skip {
			results = append(results, store.RoleResult{RoleID: roleID, Status: store.StepSkipped,
				Message: "applicant not in guild"})
			continue
		}
		if err := w.chat.AddMemberRole(ctx, app.ApplicantUserID, roleID); err != nil {
			w.logger.Warn("role grant failed",
				logging.String(logging.FieldMessageID, app.MessageID),
				logging.String("role_id", roleID), logging.Error(err))
			results = append(results, store.RoleResult{RoleID: roleID, Status: store.StepFailed,
				Message: err.Error()})
			continue
		}
		results = append(results, store.RoleResult{RoleID: roleID, Status: store.StepOK})
	}
	return results
}

func (w *Workflow) announceAcceptance(ctx context.Context, app *store.Application, settings store.Settings, track store.TrackSettings, vars map[string]string) *store.StepResult {
	content := RenderTemplate(settings.Templates.AcceptAnnouncement, vars)
	if content == "" {
		content = fmt.Sprintf("%s has been accepted as %s!", displayName(app), trackLabel(track, app))
	}
	channelID := track.AnnounceChannelID
	if channelID == "" {
		channelID = app.ChannelID
	}
	if _, err := w.chat.SendMessage(ctx, channelID, content); err != nil {
		w.logger.Warn("acceptance announcement failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
		return &store.StepResult{Step: "announce", Status: store.StepFailed, Message: err.Error()}
	}
	return &store.StepResult{Step: "announce", Status: store.StepOK}
}

func (w *Workflow) sendDenialDM(ctx context.Context, app *store.Application, settings store.Settings, vars map[string]string) *store.StepResult {
	if app.ApplicantUserID == "" {
		return &store.StepResult{Step: "deny_dm", Status: store.StepSkipped, Message: "no applicant user id"}
	}
	content := RenderTemplate(settings.Templates.DenyDM, vars)
	if content == "" {
		content = fmt.Sprintf("Your application (%s) was not accepted this time.", app.ApplicationID)
	}
	if err := w.chat.SendDM(ctx, app.ApplicantUserID, content); err != nil {
		w.logger.Warn("denial dm failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
		return &store.StepResult{Step: "deny_dm", Status: store.StepFailed, Message: err.Error()}
	}
	return &store.StepResult{Step: "deny_dm", Status: store.StepOK}
}

// replyAndLog posts the decision summary on the original message and, when a
// history channel is bound, appends it there too.
func (w *Workflow) replyAndLog(ctx context.Context, app *store.Application, summary string) {
	if _, err := w.chat.ReplyMessage(ctx, app.ChannelID, app.MessageID, summary); err != nil {
		w.logger.Warn("decision reply failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
	}
	if app.ThreadID != "" {
		if _, err := w.chat.ReplyMessage(ctx, app.ThreadID, app.MessageID, summary); err != nil {
			w.logger.Warn("thread reply failed",
				logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
		}
	}
	if w.cfg.Chat.HistoryChannelID != "" {
		if _, err := w.chat.SendMessage(ctx, w.cfg.Chat.HistoryChannelID, summary); err != nil {
			w.logger.Warn("history log failed",
				logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
		}
	}
}

// restyleMessage recolors the published message's embed to match status.
// Failures are logged, never fatal.
func (w *Workflow) restyleMessage(ctx context.Context, app *store.Application) {
	if err := w.chat.RecolorMessage(ctx, app.ChannelID, app.MessageID, chat.StatusColor(string(app.Status))); err != nil {
		w.logger.Warn("embed recolor failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
	}
}

func (w *Workflow) archiveThread(ctx context.Context, app *store.Application) {
	if app.ThreadID == "" {
		return
	}
	if err := w.chat.ArchiveThread(ctx, app.ThreadID); err != nil {
		w.logger.Warn("thread archive failed",
			logging.String(logging.FieldMessageID, app.MessageID), logging.Error(err))
	}
}

func (w *Workflow) templateVars(app *store.Application, settings store.Settings, track store.TrackSettings, reason, actorID string) map[string]string {
	return map[string]string{
		"user":             displayName(app),
		"user_id":          app.ApplicantUserID,
		"track":            trackLabel(track, app),
		"application_id":   app.ApplicationID,
		"reason":           reason,
		"actor":            actorID,
		"reviewer_mention": settings.ReviewerMention,
	}
}

// decisionReason builds the default reason text: vote decisions cite the
// tally and rule, forced decisions cite the actor.
func decisionReason(req FinalizeRequest) string {
	if req.Source == SourceVote && req.VoteContext != nil {
		v := req.VoteContext
		return fmt.Sprintf("vote: %d accept / %d deny of %d eligible (threshold %d, rule %d/%d min %d)",
			v.Accept, v.Deny, v.Eligible, v.Threshold,
			v.Rule.Numerator, v.Rule.Denominator, v.Rule.MinimumVotes)
	}
	return "forced by " + req.ActorID
}

func displayName(app *store.Application) string {
	if app.ApplicantName != "" {
		return app.ApplicantName
	}
	if app.ApplicantUserID != "" {
		return app.ApplicantUserID
	}
	return app.ApplicationID
}

func trackLabel(track store.TrackSettings, app *store.Application) string {
	if track.Label != "" {
		return track.Label
	}
	return app.TrackKey
}

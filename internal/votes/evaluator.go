package votes

import (
	"context"
	"log/slog"

	"intake/internal/config"
	"intake/internal/decision"
	"intake/internal/logging"
	"intake/internal/services/chat"
	"intake/internal/store"
)

// Evaluation reports one tally pass over an application.
type Evaluation struct {
	Outcome   Outcome `json:"outcome"`
	Accept    int     `json:"accept"`
	Deny      int     `json:"deny"`
	Eligible  int     `json:"eligible"`
	Threshold int     `json:"threshold"`
}

// Evaluator tallies reactions and finalizes applications that cross their
// vote threshold.
type Evaluator struct {
	store    *store.Store
	chat     chat.Client
	workflow *decision.Workflow
	cfg      *config.Config
	logger   *slog.Logger
}

// NewEvaluator wires vote evaluation to its collaborators.
func NewEvaluator(st *store.Store, client chat.Client, workflow *decision.Workflow, cfg *config.Config, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:    st,
		chat:     client,
		workflow: workflow,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "votes"),
	}
}

// EvaluateApplication recomputes the tally for one application and finalizes
// it when exactly one side meets the threshold. Non-pending applications
// no-op with OutcomeNone.
func (e *Evaluator) EvaluateApplication(ctx context.Context, messageID string) (Evaluation, error) {
	eval := Evaluation{Outcome: OutcomeNone}

	app, err := e.store.GetApplication(ctx, messageID)
	if err != nil {
		return eval, err
	}
	if app == nil || app.Status != store.StatusPending {
		return eval, nil
	}

	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		return eval, err
	}
	track, ok := settings.Track(app.TrackKey)
	if !ok {
		e.logger.Warn("application references unknown track",
			logging.String(logging.FieldMessageID, app.MessageID),
			logging.String(logging.FieldTrack, app.TrackKey))
		return eval, nil
	}

	viewers, err := e.chat.ChannelViewers(ctx, app.ChannelID)
	if err != nil {
		return eval, err
	}
	eligible := EligibleVoters(viewers, track.VoterRoleIDs)
	threshold := Threshold(track.Vote, len(eligible))

	acceptors, err := e.chat.ReactionUsers(ctx, app.ChannelID, app.MessageID, e.cfg.Chat.AcceptEmoji)
	if err != nil {
		return eval, err
	}
	deniers, err := e.chat.ReactionUsers(ctx, app.ChannelID, app.MessageID, e.cfg.Chat.DenyEmoji)
	if err != nil {
		return eval, err
	}

	tally := CountVotes(eligible, acceptors, deniers)
	eval = Evaluation{
		Outcome:   Decide(tally, threshold),
		Accept:    tally.Accept,
		Deny:      tally.Deny,
		Eligible:  len(eligible),
		Threshold: threshold,
	}

	switch eval.Outcome {
	case OutcomeAmbiguous:
		e.logger.Warn("both sides met the vote threshold, awaiting forced decision",
			logging.String(logging.FieldMessageID, app.MessageID),
			logging.Int("accept", tally.Accept),
			logging.Int("deny", tally.Deny),
			logging.Int("threshold", threshold))
		return eval, nil
	case OutcomeNone:
		return eval, nil
	}

	outcome := store.StatusAccepted
	if eval.Outcome == OutcomeDeny {
		outcome = store.StatusDenied
	}
	result, err := e.workflow.Finalize(ctx, decision.FinalizeRequest{
		MessageID: messageID,
		Outcome:   outcome,
		Source:    decision.SourceVote,
		ActorID:   "vote-engine",
		VoteContext: &store.VoteContext{
			Accept:    tally.Accept,
			Deny:      tally.Deny,
			Eligible:  len(eligible),
			Threshold: threshold,
			Rule:      track.Vote,
		},
	})
	if err != nil {
		return eval, err
	}
	if !result.OK && result.Reason != decision.ReasonMissingMember {
		e.logger.Info("vote finalization refused",
			logging.String(logging.FieldMessageID, messageID),
			logging.String("reason", result.Reason))
	}
	return eval, nil
}

// EvaluatePending sweeps every pending application, used by the reaction
// poll loop. Individual failures are logged and do not stop the sweep.
func (e *Evaluator) EvaluatePending(ctx context.Context) error {
	pending, err := e.store.ListApplications(ctx, store.StatusPending)
	if err != nil {
		return err
	}
	for _, app := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.EvaluateApplication(ctx, app.MessageID); err != nil {
			e.logger.Warn("vote evaluation failed",
				logging.String(logging.FieldMessageID, app.MessageID),
				logging.Error(err))
		}
	}
	return nil
}

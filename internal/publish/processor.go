package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intake/internal/config"
	"intake/internal/intake"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/services"
	"intake/internal/services/chat"
	"intake/internal/store"
)

// maxEmbedFields caps how many answers are carried onto the message embed.
const maxEmbedFields = 20

// DrainSummary reports one drain attempt.
type DrainSummary struct {
	Busy         bool   `json:"busy"`
	QueuedBefore int    `json:"queued_before"`
	Posted       int    `json:"posted"`
	Failed       int    `json:"failed"`
	Remaining    int    `json:"remaining"`
	FailedJobID  string `json:"failed_job_id,omitempty"`
	FailedError  string `json:"failed_error,omitempty"`
}

// Processor publishes queued jobs as application messages.
type Processor struct {
	store    *store.Store
	chat     chat.Client
	notifier notifications.Service
	metrics  *metrics.Metrics
	cfg      *config.Config
	logger   *slog.Logger

	// busy serializes drains process-wide; a held lock means a drain is in
	// flight and reentrant callers report busy instead of waiting.
	busy sync.Mutex
}

// NewProcessor wires the job processor.
func NewProcessor(st *store.Store, client chat.Client, notifier notifications.Service, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{
		store:    st,
		chat:     client,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "publish"),
	}
}

// Drain publishes jobs from the head of the queue until it is empty or a job
// fails. A failing job halts the drain and stays at the head; it is never
// skipped. Reentrant calls while a drain is running return Busy without
// touching the queue.
func (p *Processor) Drain(ctx context.Context) (DrainSummary, error) {
	if !p.busy.TryLock() {
		return DrainSummary{Busy: true}, nil
	}
	defer p.busy.Unlock()

	started := time.Now()
	summary := DrainSummary{}

	queued, err := p.store.CountJobs(ctx)
	if err != nil {
		return summary, err
	}
	summary.QueuedBefore = queued
	if queued == 0 {
		return summary, nil
	}

	if err := p.notifier.NotifyQueueStarted(ctx, queued); err != nil {
		p.logger.Warn("queue-start notification failed", logging.Error(err))
	}

	settings, err := p.store.LoadSettings(ctx)
	if err != nil {
		return summary, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		job, err := p.store.HeadJob(ctx)
		if err != nil {
			return summary, err
		}
		if job == nil {
			break
		}

		healJob(job)
		posted, err := p.processJob(ctx, job, settings)
		summary.Posted += posted
		if err != nil {
			summary.Failed = 1
			summary.FailedJobID = job.JobID
			summary.FailedError = err.Error()
			p.recordFailure(ctx, job, err)
			break
		}
		if err := p.store.RemoveJob(ctx, job.JobID); err != nil {
			return summary, err
		}
	}

	remaining, err := p.store.CountJobs(ctx)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	p.metrics.QueueDepth.Set(float64(remaining))

	if err := p.notifier.NotifyQueueCompleted(ctx, summary.Posted, summary.Failed, time.Since(started)); err != nil {
		p.logger.Warn("queue-complete notification failed", logging.Error(err))
	}
	return summary, nil
}

// processJob publishes every pending track of one job. Channel bindings for
// all pending tracks are resolved up front: a single unbound track fails the
// whole job so multi-track applications are never partially announced in
// silence.
func (p *Processor) processJob(ctx context.Context, job *store.Job, settings store.Settings) (int, error) {
	pending := job.PendingTracks()
	if len(pending) == 0 {
		return 0, nil
	}

	tracks := make(map[string]store.TrackSettings, len(pending))
	for _, key := range pending {
		track, ok := settings.Track(key)
		if !ok || track.ChannelID == "" {
			return 0, services.Wrap(services.ErrConfiguration, "publish", "resolve channel",
				fmt.Sprintf("track %q has no channel configured", key), nil)
		}
		tracks[key] = track
	}

	posted := 0
	for _, key := range pending {
		if err := p.postTrack(ctx, job, tracks[key], settings); err != nil {
			return posted, err
		}
		posted++
	}
	return posted, nil
}

// postTrack publishes one (job, track) application: message, both reaction
// sentinels, discussion thread, persisted application, posted marker. Every
// step must succeed before the next track runs.
func (p *Processor) postTrack(ctx context.Context, job *store.Job, track store.TrackSettings, settings store.Settings) error {
	profile := intake.RowProfile(job.Headers, job.Row)
	fields := intake.SubmittedFields(job.Headers, job.Row)
	applicationID := job.JobID + "-" + track.Key

	embed := buildEmbed(profile, track, fields)
	content := fmt.Sprintf("New %s application from %s", trackLabel(track), applicantLabel(profile, applicationID))
	if settings.ReviewerMention != "" {
		content = settings.ReviewerMention + " " + content
	}

	msg, err := p.chat.SendMessage(ctx, track.ChannelID, content, embed)
	if err != nil {
		return err
	}
	if err := p.chat.AddReaction(ctx, track.ChannelID, msg.ID, p.cfg.Chat.AcceptEmoji); err != nil {
		return err
	}
	if err := p.chat.AddReaction(ctx, track.ChannelID, msg.ID, p.cfg.Chat.DenyEmoji); err != nil {
		return err
	}

	threadName := fmt.Sprintf("%s (%s)", applicantLabel(profile, applicationID), trackLabel(track))
	thread, err := p.chat.CreateThread(ctx, track.ChannelID, msg.ID, threadName)
	if err != nil {
		return err
	}

	app := &store.Application{
		MessageID:       msg.ID,
		ApplicationID:   applicationID,
		ChannelID:       track.ChannelID,
		ThreadID:        thread.ID,
		Status:          store.StatusPending,
		TrackKey:        track.Key,
		RowIndex:        job.RowIndex,
		ResponseKey:     job.ResponseKey,
		JobID:           job.JobID,
		ApplicantName:   profile.Name,
		ApplicantUserID: profile.UserID,
		SubmittedFields: fields,
	}
	if err := p.store.PutApplication(ctx, app); err != nil {
		return err
	}

	job.MarkPosted(track.Key)
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	p.metrics.ApplicationsPosted.Inc()
	p.logger.Info("application published",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldMessageID, msg.ID),
		logging.String(logging.FieldTrack, track.Key))
	return nil
}

// recordFailure stamps the failing job and leaves it at the queue head.
func (p *Processor) recordFailure(ctx context.Context, job *store.Job, cause error) {
	now := time.Now().UTC()
	job.Attempts++
	job.LastAttemptAt = &now
	job.LastError = cause.Error()
	if err := p.store.UpdateJob(ctx, job); err != nil {
		p.logger.Error("persist job failure", logging.String(logging.FieldJobID, job.JobID), logging.Error(err))
	}
	p.metrics.JobsFailed.Inc()
	p.logger.Error("job failed, queue halted",
		logging.String(logging.FieldJobID, job.JobID),
		logging.Int("attempts", job.Attempts),
		logging.Error(cause))
	if err := p.notifier.NotifyQueueHalted(ctx, job.JobID, cause.Error()); err != nil {
		p.logger.Warn("queue-halt notification failed", logging.Error(err))
	}
}

// healJob normalizes track bookkeeping against stale persisted data: track
// keys are deduplicated and posted markers for unknown tracks are dropped.
func healJob(job *store.Job) {
	job.TrackKeys = dedupe(job.TrackKeys)
	known := make(map[string]struct{}, len(job.TrackKeys))
	for _, key := range job.TrackKeys {
		known[key] = struct{}{}
	}
	var posted []string
	for _, key := range dedupe(job.PostedTracks) {
		if _, ok := known[key]; ok {
			posted = append(posted, key)
		}
	}
	job.PostedTracks = posted
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func buildEmbed(profile intake.Profile, track store.TrackSettings, fields []store.Field) chat.Embed {
	embed := chat.Embed{
		Title: fmt.Sprintf("%s application", trackLabel(track)),
		Color: chat.ColorPending,
	}
	if profile.Name != "" {
		embed.Description = "Applicant: " + profile.Name
	}
	for i, field := range fields {
		if i == maxEmbedFields {
			embed.Fields = append(embed.Fields, chat.Field{
				Name:  "More answers",
				Value: fmt.Sprintf("%d additional answers omitted", len(fields)-maxEmbedFields),
			})
			break
		}
		embed.Fields = append(embed.Fields, chat.Field{Name: field.Label, Value: field.Value})
	}
	return embed
}

func applicantLabel(profile intake.Profile, applicationID string) string {
	if profile.Name != "" {
		return profile.Name
	}
	return applicationID
}

func trackLabel(track store.TrackSettings) string {
	if track.Label != "" {
		return track.Label
	}
	return track.Key
}

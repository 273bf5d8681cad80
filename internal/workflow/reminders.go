package workflow

import (
	"context"
	"fmt"
	"time"

	"intake/internal/decision"
	"intake/internal/logging"
	"intake/internal/store"
)

// sendReminders nudges reviewers about stale pending applications, posting in
// the application's thread when one exists. A first reminder goes out after
// reminder_after_hours; repeats follow every reminder_every_hours. Reminder
// state clears on reopen, so a reopened application earns a fresh cycle.
func (m *Manager) sendReminders(ctx context.Context) error {
	after := time.Duration(m.cfg.Workflow.ReminderAfterHours) * time.Hour
	every := time.Duration(m.cfg.Workflow.ReminderEveryHours) * time.Hour
	if after <= 0 {
		return nil
	}
	if every <= 0 {
		every = after
	}

	pending, err := m.store.ListApplications(ctx, store.StatusPending)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	settings, err := m.store.LoadSettings(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, app := range pending {
		if !reminderDue(app, now, after, every) {
			continue
		}
		track, _ := settings.Track(app.TrackKey)
		vars := map[string]string{
			"user":             app.ApplicantName,
			"track":            track.Label,
			"application_id":   app.ApplicationID,
			"reviewer_mention": settings.ReviewerMention,
		}
		content := decision.RenderTemplate(settings.Templates.Reminder, vars)
		if content == "" {
			content = fmt.Sprintf("Application %s is still awaiting votes.", app.ApplicationID)
		}
		destination := app.ThreadID
		if destination == "" {
			destination = app.ChannelID
		}
		if _, err := m.chat.ReplyMessage(ctx, destination, app.MessageID, content); err != nil {
			m.logger.Warn("reminder failed",
				logging.String(logging.FieldMessageID, app.MessageID),
				logging.Error(err))
			continue
		}
		app.LastReminderAt = &now
		app.ReminderCount++
		if err := m.store.UpdateApplication(ctx, app); err != nil {
			return err
		}
		m.logger.Info("reminder sent",
			logging.String(logging.FieldMessageID, app.MessageID),
			logging.Int("count", app.ReminderCount))
	}
	return nil
}

func reminderDue(app *store.Application, now time.Time, after, every time.Duration) bool {
	anchor := app.CreatedAt
	if app.ReopenedAt != nil && app.ReopenedAt.After(anchor) {
		anchor = *app.ReopenedAt
	}
	if app.LastReminderAt == nil {
		return !anchor.IsZero() && now.Sub(anchor) >= after
	}
	return now.Sub(*app.LastReminderAt) >= every
}

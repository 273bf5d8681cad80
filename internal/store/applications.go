package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const applicationColumns = "message_id, application_id, channel_id, thread_id, status, track_key, row_index, response_key, job_id, applicant_name, applicant_user_id, created_at, submitted_fields, decided_at, decided_by, decision_source, decision_reason, role_results, accept_announce, deny_dm, last_acceptance_block, vote_context, last_decision, reopened_at, reopened_by, reopen_reason, closed_at, closed_by, close_reason, admin_done, last_reminder_at, reminder_count"

// PutApplication inserts the record for a freshly published application.
func (s *Store) PutApplication(ctx context.Context, app *Application) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	if app.Status == "" {
		app.Status = StatusPending
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO applications (`+applicationColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.MessageID,
		app.ApplicationID,
		app.ChannelID,
		nullableString(app.ThreadID),
		app.Status,
		app.TrackKey,
		app.RowIndex,
		nullableString(app.ResponseKey),
		nullableString(app.JobID),
		nullableString(app.ApplicantName),
		nullableString(app.ApplicantUserID),
		app.CreatedAt.Format(time.RFC3339Nano),
		marshalJSON(app.SubmittedFields),
		nullableTime(app.DecidedAt),
		nullableString(app.DecidedBy),
		nullableString(app.DecisionSource),
		nullableString(app.DecisionReason),
		marshalJSON(app.RoleResults),
		marshalJSON(app.AcceptAnnounce),
		marshalJSON(app.DenyDM),
		nullableString(app.LastAcceptanceBlock),
		marshalJSON(app.VoteContext),
		marshalJSON(app.LastDecision),
		nullableTime(app.ReopenedAt),
		nullableString(app.ReopenedBy),
		nullableString(app.ReopenReason),
		nullableTime(app.ClosedAt),
		nullableString(app.ClosedBy),
		nullableString(app.CloseReason),
		boolToInt(app.AdminDone),
		nullableTime(app.LastReminderAt),
		app.ReminderCount,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// UpdateApplication persists lifecycle mutations to an existing application.
func (s *Store) UpdateApplication(ctx context.Context, app *Application) error {
	if app == nil {
		return errors.New("application is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE applications SET
            thread_id = ?, status = ?, created_at = ?, decided_at = ?, decided_by = ?, decision_source = ?,
            decision_reason = ?, role_results = ?, accept_announce = ?, deny_dm = ?,
            last_acceptance_block = ?, vote_context = ?, last_decision = ?, reopened_at = ?,
            reopened_by = ?, reopen_reason = ?, closed_at = ?, closed_by = ?, close_reason = ?,
            admin_done = ?, last_reminder_at = ?, reminder_count = ?
         WHERE message_id = ?`,
		nullableString(app.ThreadID),
		app.Status,
		app.CreatedAt.Format(time.RFC3339Nano),
		nullableTime(app.DecidedAt),
		nullableString(app.DecidedBy),
		nullableString(app.DecisionSource),
		nullableString(app.DecisionReason),
		marshalJSON(app.RoleResults),
		marshalJSON(app.AcceptAnnounce),
		marshalJSON(app.DenyDM),
		nullableString(app.LastAcceptanceBlock),
		marshalJSON(app.VoteContext),
		marshalJSON(app.LastDecision),
		nullableTime(app.ReopenedAt),
		nullableString(app.ReopenedBy),
		nullableString(app.ReopenReason),
		nullableTime(app.ClosedAt),
		nullableString(app.ClosedBy),
		nullableString(app.CloseReason),
		boolToInt(app.AdminDone),
		nullableTime(app.LastReminderAt),
		app.ReminderCount,
		app.MessageID,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// GetApplication fetches an application by its message id. Returns nil when
// untracked.
func (s *Store) GetApplication(ctx context.Context, messageID string) (*Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE message_id = ?`, messageID)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// ListApplications returns applications filtered by status set (or all when
// no status is provided), ordered by creation time.
func (s *Store) ListApplications(ctx context.Context, statuses ...Status) ([]*Application, error) {
	baseQuery := `SELECT ` + applicationColumns + ` FROM applications`
	orderClause := ` ORDER BY created_at, message_id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanApplication(scanner interface{ Scan(dest ...any) error }) (*Application, error) {
	var (
		messageID       string
		applicationID   string
		channelID       string
		threadID        sql.NullString
		statusStr       string
		trackKey        string
		rowIndex        int
		responseKey     sql.NullString
		jobID           sql.NullString
		applicantName   sql.NullString
		applicantUserID sql.NullString
		createdRaw      sql.NullString
		fields          sql.NullString
		decidedAt       sql.NullString
		decidedBy       sql.NullString
		decisionSource  sql.NullString
		decisionReason  sql.NullString
		roleResults     sql.NullString
		acceptAnnounce  sql.NullString
		denyDM          sql.NullString
		acceptBlock     sql.NullString
		voteContext     sql.NullString
		lastDecision    sql.NullString
		reopenedAt      sql.NullString
		reopenedBy      sql.NullString
		reopenReason    sql.NullString
		closedAt        sql.NullString
		closedBy        sql.NullString
		closeReason     sql.NullString
		adminDone       sql.NullInt64
		lastReminderAt  sql.NullString
		reminderCount   sql.NullInt64
	)

	if err := scanner.Scan(
		&messageID,
		&applicationID,
		&channelID,
		&threadID,
		&statusStr,
		&trackKey,
		&rowIndex,
		&responseKey,
		&jobID,
		&applicantName,
		&applicantUserID,
		&createdRaw,
		&fields,
		&decidedAt,
		&decidedBy,
		&decisionSource,
		&decisionReason,
		&roleResults,
		&acceptAnnounce,
		&denyDM,
		&acceptBlock,
		&voteContext,
		&lastDecision,
		&reopenedAt,
		&reopenedBy,
		&reopenReason,
		&closedAt,
		&closedBy,
		&closeReason,
		&adminDone,
		&lastReminderAt,
		&reminderCount,
	); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		// Unknown persisted statuses self-heal to pending so the record stays
		// reachable through the decision workflow.
		status = StatusPending
	}

	app := &Application{
		MessageID:           messageID,
		ApplicationID:       applicationID,
		ChannelID:           channelID,
		ThreadID:            threadID.String,
		Status:              status,
		TrackKey:            trackKey,
		RowIndex:            rowIndex,
		ResponseKey:         responseKey.String,
		JobID:               jobID.String,
		ApplicantName:       applicantName.String,
		ApplicantUserID:     applicantUserID.String,
		DecidedBy:           decidedBy.String,
		DecisionSource:      decisionSource.String,
		DecisionReason:      decisionReason.String,
		LastAcceptanceBlock: acceptBlock.String,
		ReopenedBy:          reopenedBy.String,
		ReopenReason:        reopenReason.String,
		ClosedBy:            closedBy.String,
		CloseReason:         closeReason.String,
		DecidedAt:           scanTimePtr(decidedAt),
		ReopenedAt:          scanTimePtr(reopenedAt),
		ClosedAt:            scanTimePtr(closedAt),
		LastReminderAt:      scanTimePtr(lastReminderAt),
	}
	if adminDone.Valid {
		app.AdminDone = adminDone.Int64 != 0
	}
	if reminderCount.Valid {
		app.ReminderCount = int(reminderCount.Int64)
	}
	unmarshalJSON(fields, &app.SubmittedFields)
	unmarshalJSON(roleResults, &app.RoleResults)
	unmarshalJSON(acceptAnnounce, &app.AcceptAnnounce)
	unmarshalJSON(denyDM, &app.DenyDM)
	unmarshalJSON(voteContext, &app.VoteContext)
	unmarshalJSON(lastDecision, &app.LastDecision)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		app.CreatedAt = created
	}
	return app, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

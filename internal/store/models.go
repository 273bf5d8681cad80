package store

import (
	"strings"
	"time"
)

// Status represents the decision lifecycle of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDenied   Status = "denied"
	StatusClosed   Status = "closed"
)

var statusSet = map[Status]struct{}{
	StatusPending:  {},
	StatusAccepted: {},
	StatusDenied:   {},
	StatusClosed:   {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Decided reports whether the status carries a final decision.
func (s Status) Decided() bool {
	return s == StatusAccepted || s == StatusDenied
}

// Job is a queued unit of work: one response row awaiting publication to one
// or more tracks. PostedTracks records targets already published so a retry
// after partial failure resumes instead of double-posting.
type Job struct {
	JobID         string
	Seq           int64
	RowIndex      int
	TrackKeys     []string
	PostedTracks  []string
	ResponseKey   string
	Headers       []string
	Row           []string
	CreatedAt     time.Time
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
}

// PendingTracks returns the track keys not yet published, preserving order.
func (j *Job) PendingTracks() []string {
	posted := make(map[string]struct{}, len(j.PostedTracks))
	for _, key := range j.PostedTracks {
		posted[key] = struct{}{}
	}
	var pending []string
	for _, key := range j.TrackKeys {
		if _, ok := posted[key]; !ok {
			pending = append(pending, key)
		}
	}
	return pending
}

// Complete reports whether every target track has been published.
func (j *Job) Complete() bool {
	return len(j.TrackKeys) > 0 && len(j.PendingTracks()) == 0
}

// MarkPosted records a track as published, ignoring duplicates.
func (j *Job) MarkPosted(trackKey string) {
	for _, key := range j.PostedTracks {
		if key == trackKey {
			return
		}
	}
	j.PostedTracks = append(j.PostedTracks, trackKey)
}

// Field is one answered form question carried onto the application message.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StepResult captures the outcome of one side-effect step during a decision
// transition. Steps never abort each other; every attempted step is recorded.
type StepResult struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Step result statuses.
const (
	StepOK      = "ok"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// RoleResult captures one role-grant attempt so partial grants across
// multiple roles are reported individually.
type RoleResult struct {
	RoleID  string `json:"role_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VoteContext snapshots the tally that produced a vote decision.
type VoteContext struct {
	Accept    int      `json:"accept"`
	Deny      int      `json:"deny"`
	Eligible  int      `json:"eligible"`
	Threshold int      `json:"threshold"`
	Rule      VoteRule `json:"rule"`
}

// DecisionSnapshot preserves an outgoing decision when an application is
// reopened.
type DecisionSnapshot struct {
	Status    Status     `json:"status"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	Source    string     `json:"source,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Application is the persisted record of a published, reviewable submission
// and its decision lifecycle. Keyed by the chat message id.
type Application struct {
	MessageID       string
	ApplicationID   string
	ChannelID       string
	ThreadID        string
	Status          Status
	TrackKey        string
	RowIndex        int
	ResponseKey     string
	JobID           string
	ApplicantName   string
	ApplicantUserID string
	CreatedAt       time.Time
	SubmittedFields []Field

	DecidedAt      *time.Time
	DecidedBy      string
	DecisionSource string
	DecisionReason string

	RoleResults         []RoleResult
	AcceptAnnounce      *StepResult
	DenyDM              *StepResult
	LastAcceptanceBlock string
	VoteContext         *VoteContext
	LastDecision        *DecisionSnapshot

	ReopenedAt   *time.Time
	ReopenedBy   string
	ReopenReason string

	LastReminderAt *time.Time
	ReminderCount  int

	ClosedAt    *time.Time
	ClosedBy    string
	CloseReason string
	AdminDone   bool
}

// ClearDecision wipes all decision-derived fields ahead of a reopen. The
// caller snapshots the outgoing decision first.
func (a *Application) ClearDecision() {
	a.DecidedAt = nil
	a.DecidedBy = ""
	a.DecisionSource = ""
	a.DecisionReason = ""
	a.RoleResults = nil
	a.AcceptAnnounce = nil
	a.DenyDM = nil
	a.LastAcceptanceBlock = ""
	a.VoteContext = nil
	a.LastReminderAt = nil
	a.ReminderCount = 0
	a.ClosedAt = nil
	a.ClosedBy = ""
	a.CloseReason = ""
	a.AdminDone = false
}

// ControlAction is one bounded audit-log entry for an operator or engine
// action that changed state.
type ControlAction struct {
	ID     string
	At     time.Time
	Actor  string
	Action string
	Detail string
}

// HealthSummary describes aggregated application counts by status plus the
// queue depth.
type HealthSummary struct {
	Applications int
	Pending      int
	Accepted     int
	Denied       int
	Closed       int
	QueuedJobs   int
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intake/internal/config"
)

const userAgent = "Intake-Go/0.1.0"

// Service defines the alerting surface exposed to workflow components.
type Service interface {
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, posted, failed int, duration time.Duration) error
	NotifyQueueHalted(ctx context.Context, jobID, reason string) error
	NotifyDecision(ctx context.Context, applicationID, status, source string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		queue:     cfg.Notifications.Queue,
		decisions: cfg.Notifications.Decisions,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	queue     bool
	decisions bool
	errors    bool
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	if !n.queue {
		return nil
	}
	data := payload{
		title:   "Intake - Queue Started",
		message: fmt.Sprintf("Started publishing queue with %d jobs", count),
		tags:    []string{"intake", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, posted, failed int, duration time.Duration) error {
	if !n.queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Intake - Queue Complete"
		message = fmt.Sprintf("Queue drained: %d applications posted in %s", posted, durationText)
	} else {
		title = "Intake - Queue Halted"
		message = fmt.Sprintf("Queue halted: %d posted, %d failed in %s", posted, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"intake", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueHalted(ctx context.Context, jobID, reason string) error {
	if !n.queue {
		return nil
	}
	data := payload{
		title:    "Intake - Queue Blocked",
		message:  fmt.Sprintf("Job %s is blocking the queue: %s", jobID, strings.TrimSpace(reason)),
		tags:     []string{"intake", "queue", "blocked"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDecision(ctx context.Context, applicationID, status, source string) error {
	if !n.decisions {
		return nil
	}
	data := payload{
		title:   "Intake - Decision",
		message: fmt.Sprintf("Application %s %s (%s)", applicationID, status, source),
		tags:    []string{"intake", "decision", status},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Intake - Error",
		message:  builder.String(),
		tags:     []string{"intake", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Intake - Test",
		message:  "Notification system test",
		tags:     []string{"intake", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyQueueHalted(context.Context, string, string) error             { return nil }
func (noopService) NotifyDecision(context.Context, string, string, string) error        { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }

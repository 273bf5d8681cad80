package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"intake/internal/config"
	"intake/internal/logging"
	"intake/internal/services"
)

// HTTPDoer describes the HTTP client used by the REST service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTClient implements Client against the platform's REST API.
type RESTClient struct {
	baseURL     string
	token       string
	guildID     string
	maxAttempts int
	client      HTTPDoer
	logger      *slog.Logger
}

// NewRESTClient builds a REST client from configuration.
func NewRESTClient(cfg *config.Config, logger *slog.Logger) *RESTClient {
	timeout := time.Duration(cfg.Chat.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:     strings.TrimRight(cfg.Chat.BaseURL, "/"),
		token:       cfg.Chat.BotToken,
		guildID:     cfg.Chat.GuildID,
		maxAttempts: cfg.Chat.MaxRetryAttempts,
		client:      &http.Client{Timeout: timeout},
		logger:      logging.WithComponent(logger, "chat"),
	}
}

// NewRESTClientWithDoer is used by tests to inject a transport.
func NewRESTClientWithDoer(baseURL, token, guildID string, maxAttempts int, doer HTTPDoer, logger *slog.Logger) *RESTClient {
	return &RESTClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		guildID:     guildID,
		maxAttempts: maxAttempts,
		client:      doer,
		logger:      logging.WithComponent(logger, "chat"),
	}
}

type sendMessageRequest struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	ReplyTo string  `json:"reply_to,omitempty"`
}

func (c *RESTClient) SendMessage(ctx context.Context, channelID, content string, embeds ...Embed) (*Message, error) {
	var message Message
	err := c.withRetry(ctx, "send message", func() error {
		return c.doJSON(ctx, http.MethodPost,
			fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID)),
			sendMessageRequest{Content: content, Embeds: embeds},
			&message,
		)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *RESTClient) ReplyMessage(ctx context.Context, channelID, messageID, content string) (*Message, error) {
	var message Message
	err := c.withRetry(ctx, "reply message", func() error {
		return c.doJSON(ctx, http.MethodPost,
			fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID)),
			sendMessageRequest{Content: content, ReplyTo: messageID},
			&message,
		)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *RESTClient) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return c.withRetry(ctx, "add reaction", func() error {
		return c.doJSON(ctx, http.MethodPut,
			fmt.Sprintf("/channels/%s/messages/%s/reactions/%s",
				url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(emoji)),
			nil, nil,
		)
	})
}

func (c *RESTClient) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]Member, error) {
	var members []Member
	err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/messages/%s/reactions/%s",
			url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(emoji)),
		nil, &members,
	)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (c *RESTClient) CreateThread(ctx context.Context, channelID, messageID, name string) (*Thread, error) {
	var thread Thread
	err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages/%s/threads", url.PathEscape(channelID), url.PathEscape(messageID)),
		map[string]string{"name": name},
		&thread,
	)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *RESTClient) ArchiveThread(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/threads/%s/archive", url.PathEscape(threadID)), nil, nil)
}

func (c *RESTClient) Channel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s", url.PathEscape(channelID)), nil, &channel)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *RESTClient) ChannelViewers(ctx context.Context, channelID string) ([]Member, error) {
	var members []Member
	err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/viewers", url.PathEscape(channelID)), nil, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (c *RESTClient) Member(ctx context.Context, userID string) (*Member, error) {
	var member Member
	err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/guilds/%s/members/%s", url.PathEscape(c.guildID), url.PathEscape(userID)),
		nil, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *RESTClient) AddMemberRole(ctx context.Context, userID, roleID string) error {
	return c.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("/guilds/%s/members/%s/roles/%s",
			url.PathEscape(c.guildID), url.PathEscape(userID), url.PathEscape(roleID)),
		nil, nil)
}

func (c *RESTClient) SendDM(ctx context.Context, userID, content string) error {
	return c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/users/%s/dm", url.PathEscape(userID)),
		map[string]string{"content": content}, nil)
}

func (c *RESTClient) RecolorMessage(ctx context.Context, channelID, messageID string, color int) error {
	return c.doJSON(ctx, http.MethodPatch,
		fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID)),
		map[string]int{"embed_color": color}, nil)
}

// retryAfterError carries the server-supplied retry hint through the retry loop.
type retryAfterError struct {
	err   error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }

func (e *retryAfterError) Unwrap() error { return e.err }

// withRetry re-attempts rate-limited calls up to the configured cap, honoring
// the server's Retry-After hint and falling back to doubling waits.
func (c *RESTClient) withRetry(ctx context.Context, operation string, call func() error) error {
	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := time.Second
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if !services.IsRetryable(err) || attempt == attempts {
			return err
		}
		delay := wait
		var hinted *retryAfterError
		if errors.As(err, &hinted) && hinted.after > 0 {
			delay = hinted.after
		}
		if c.logger != nil {
			c.logger.Warn("rate limited, retrying",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		wait *= 2
	}
	return lastErr
}

func (c *RESTClient) doJSON(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, "chat", method+" "+path, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return services.Wrap(services.ErrValidation, "chat", method+" "+path, "build request", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "chat", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.classifyFailure(method, path, resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrTransient, "chat", method+" "+path, "decode response", err)
	}
	return nil
}

func (c *RESTClient) classifyFailure(method, path string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		err := services.Wrap(services.ErrRateLimited, "chat", method+" "+path, message, nil)
		return &retryAfterError{err: err, after: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "chat", method+" "+path, message, nil)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrPermission, "chat", method+" "+path, message, nil)
	case resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "chat", method+" "+path, message, nil)
	default:
		return services.Wrap(services.ErrValidation, "chat", method+" "+path, message, nil)
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(header, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}

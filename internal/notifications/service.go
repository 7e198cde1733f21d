package notifications

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"mangawatch/internal/config"
	"mangawatch/internal/services"
)

const userAgent = "MangaWatch-Go/0.1.0"

// Service publishes events to the configured transport.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	client := &http.Client{Timeout: cfg.NotificationTimeout()}
	return &ntfyService{
		endpoint:    topic,
		client:      client,
		priority:    strings.TrimSpace(cfg.Notifications.Priority),
		attachCover: cfg.Notifications.AttachCover,
	}
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	priority    string
	attachCover bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	data, deliver := render(event, payload)
	if !deliver {
		return nil
	}
	if data.priority == "" {
		data.priority = n.priority
	}
	if !n.attachCover {
		data.attach = ""
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "build request", "invalid ntfy topic", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		// ntfy decodes RFC 2047 words, which keeps emoji titles intact.
		req.Header.Set("Title", mime.QEncoding.Encode("utf-8", data.title))
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}
	if data.attach != "" {
		req.Header.Set("Attach", data.attach)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "notifications", "send", "ntfy request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrSourceUnavailable, "notifications", "send",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

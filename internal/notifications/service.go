package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/store"
)

const userAgent = "Darkroom-Go/0.1.0"

// Service defines the notification surface exposed to the archive pipeline.
type Service interface {
	NotifyArchiveReady(ctx context.Context, archive *store.Archive) error
	NotifyArchiveFailed(ctx context.Context, archive *store.Archive, reason string) error
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

	timeout := cfg.Notifications.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyArchiveReady(ctx context.Context, archive *store.Archive) error {
	if archive == nil {
		return nil
	}
	message := fmt.Sprintf("Archive ready: gallery %s v%d (%d images, %s)",
		archive.GalleryID, archive.Version, archive.ImageCount, formatBytes(archive.SizeBytes))
	if recipient := strings.TrimSpace(archive.NotifyRecipient); recipient != "" {
		message = fmt.Sprintf("%s\nRecipient: %s", message, recipient)
	}
	data := payload{
		title:   "Darkroom - Archive Ready",
		message: message,
		tags:    []string{"darkroom", "archive", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyArchiveFailed(ctx context.Context, archive *store.Archive, reason string) error {
	if archive == nil {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Darkroom - Archive Failed",
		message:  fmt.Sprintf("Archive failed: gallery %s v%d\n%s", archive.GalleryID, archive.Version, reason),
		tags:     []string{"darkroom", "archive", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
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
		title:    "Darkroom - Error",
		message:  builder.String(),
		tags:     []string{"darkroom", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Darkroom - Test",
		message:  "Notification system test",
		tags:     []string{"darkroom", "test"},
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

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMG"[exp])
}

type noopService struct{}

func (noopService) NotifyArchiveReady(context.Context, *store.Archive) error          { return nil }
func (noopService) NotifyArchiveFailed(context.Context, *store.Archive, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }

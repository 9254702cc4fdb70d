package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"curator/internal/catalog"
	"curator/internal/config"
)

const userAgent = "Curator-Go/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifyJobStarted(ctx context.Context, job *catalog.Job) error
	NotifyJobCompleted(ctx context.Context, job *catalog.Job) error
	NotifyJobFailed(ctx context.Context, job *catalog.Job, cause error) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:  topic,
		client:    client,
		jobEvents: cfg.Notifications.JobEvents,
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
	jobEvents bool
	errors    bool
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, job *catalog.Job) error {
	if !n.jobEvents || job == nil {
		return nil
	}
	data := payload{
		title:   "Curator - Job Started",
		message: fmt.Sprintf("Processing started for file #%d (job #%d)", job.FileID, job.ID),
		tags:    []string{"curator", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *catalog.Job) error {
	if !n.jobEvents || job == nil {
		return nil
	}
	data := payload{
		title:   "Curator - Job Complete",
		message: fmt.Sprintf("Track edits applied to file #%d (job #%d)", job.FileID, job.ID),
		tags:    []string{"curator", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *catalog.Job, cause error) error {
	if !n.errors || job == nil {
		return nil
	}
	message := fmt.Sprintf("Processing failed for file #%d (job #%d)", job.FileID, job.ID)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(cause.Error()))
	}
	data := payload{
		title:    "Curator - Job Failed",
		message:  message,
		tags:     []string{"curator", "job", "failed"},
		priority: "high",
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
		title:    "Curator - Error",
		message:  builder.String(),
		tags:     []string{"curator", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Curator - Test",
		message:  "Notification system test",
		tags:     []string{"curator", "test"},
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

func (noopService) NotifyJobStarted(context.Context, *catalog.Job) error       { return nil }
func (noopService) NotifyJobCompleted(context.Context, *catalog.Job) error     { return nil }
func (noopService) NotifyJobFailed(context.Context, *catalog.Job, error) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }

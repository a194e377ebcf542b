// Package notify renders local notifications to the sinks available on this
// host: the log, and optionally a Slack incoming webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tag = "Notifier"

// LogRenderer writes notifications to the log. Channels are registered on
// first use, once per channel id.
type LogRenderer struct {
	logger   pkglog.Logger
	mu       sync.Mutex
	channels map[string]domain.Channel
}

func NewLogRenderer(logger pkglog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger, channels: map[string]domain.Channel{}}
}

func (r *LogRenderer) Render(_ context.Context, n domain.Notification) error {
	r.ensureChannel(n.Channel)
	r.logger.Info(tag, n.Title, pkglog.Fields{
		"channel":         n.Channel.ID,
		"notification_id": n.ID,
		"body":            n.Body,
		"action":          n.Action,
	})
	return nil
}

func (r *LogRenderer) ensureChannel(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch.ID]; ok {
		return
	}
	r.channels[ch.ID] = ch
	r.logger.Debug(tag, "notification channel registered", pkglog.Fields{"channel": ch.ID, "name": ch.Name})
}

// Channels returns the registered channel ids.
func (r *LogRenderer) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.channels))
	for id := range r.channels {
		out = append(out, id)
	}
	return out
}

type SlackRenderer struct {
	webhookURL string
	appName    string
}

func NewSlackRenderer(webhookURL, appName string) *SlackRenderer {
	return &SlackRenderer{webhookURL: webhookURL, appName: appName}
}

func (r *SlackRenderer) Render(ctx context.Context, n domain.Notification) error {
	msg := &slack.WebhookMessage{
		Username: r.appName,
		Text:     fmt.Sprintf("[%s] %s", n.Channel.Name, n.Title),
		Attachments: []slack.Attachment{{
			Text:   n.Body,
			Footer: n.Channel.Description,
		}},
	}
	if err := slack.PostWebhookContext(ctx, r.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// Fanout renders to every sink and joins their errors.
type Fanout []domain.NotificationRenderer

func (f Fanout) Render(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, r := range f {
		if err := r.Render(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

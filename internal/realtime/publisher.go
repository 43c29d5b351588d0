package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"talktime/internal/domain"
)

const (
	// AutoLaunchChannel carries meeting-auto-launch broadcasts consumed by
	// the call-launch UI.
	AutoLaunchChannel = "meetings:auto-launch"

	notificationChannelPrefix = "notifications:"
)

// NotificationChannel names the per-recipient live-update channel. A person
// acting under two roles gets two independent streams.
func NotificationChannel(role domain.Role, recipientID string) string {
	return fmt.Sprintf("%s%s_%s", notificationChannelPrefix, role, recipientID)
}

// Publisher is the live-update sink: one event per persisted notification and
// one per auto-launch trigger.
type Publisher interface {
	PublishNotification(ctx context.Context, notif *domain.Notification) error
	PublishAutoLaunch(ctx context.Context, event domain.AutoLaunchEvent) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) PublishNotification(ctx context.Context, notif *domain.Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "new-notification",
		"data":  notif,
	})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	channel := NotificationChannel(notif.RecipientRole, notif.RecipientID.String())
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *redisPublisher) PublishAutoLaunch(ctx context.Context, event domain.AutoLaunchEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "meeting-auto-launch",
		"data":  event,
	})
	if err != nil {
		return fmt.Errorf("marshal auto-launch event: %w", err)
	}

	return p.client.Publish(ctx, AutoLaunchChannel, payload).Err()
}

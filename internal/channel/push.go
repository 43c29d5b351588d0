package channel

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"

	"talktime/internal/domain"
	"talktime/internal/repository"
)

// PushDispatcher multicasts to every active device a recipient has
// registered. Tokens FCM reports as dead are deactivated in place.
type PushDispatcher struct {
	fcm        *messaging.Client
	deviceRepo repository.DeviceRepository
}

func NewPushDispatcher(fcm *messaging.Client, deviceRepo repository.DeviceRepository) *PushDispatcher {
	return &PushDispatcher{
		fcm:        fcm,
		deviceRepo: deviceRepo,
	}
}

func (d *PushDispatcher) Name() domain.Channel {
	return domain.ChannelPush
}

func (d *PushDispatcher) Send(ctx context.Context, profile *domain.Profile, notif *domain.Notification) error {
	tokens, err := d.deviceRepo.ActiveTokens(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no active devices for recipient %s", profile.ID)
	}

	data := map[string]string{
		"notification_id": notif.ID.String(),
		"type":            string(notif.Type),
		"priority":        string(notif.Priority),
	}
	if notif.Tag != nil {
		data["tag"] = *notif.Tag
	}
	if notif.ActionURL != nil {
		data["action_url"] = *notif.ActionURL
	}
	if notif.RequireInteraction {
		data["require_interaction"] = "true"
	}
	if len(notif.Metadata) > 0 {
		data["metadata"] = string(notif.Metadata)
	}

	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: notif.Title,
			Body:  notif.Message,
		},
		Data:   data,
		Tokens: tokens,
	}

	response, err := d.fcm.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("fcm multicast: %w", err)
	}

	d.cleanupFailedTokens(ctx, response, tokens)

	if response.SuccessCount == 0 {
		return fmt.Errorf("fcm rejected all %d tokens", len(tokens))
	}
	return nil
}

func (d *PushDispatcher) cleanupFailedTokens(ctx context.Context, response *messaging.BatchResponse, tokens []string) {
	for i, result := range response.Responses {
		if result.Success || i >= len(tokens) {
			continue
		}
		if messaging.IsUnregistered(result.Error) || messaging.IsInvalidArgument(result.Error) {
			if err := d.deviceRepo.Deactivate(ctx, tokens[i]); err != nil {
				log.Printf("Failed to deactivate device token: %v", err)
			}
		}
	}
}

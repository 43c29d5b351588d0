package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"talktime/internal/config"
	"talktime/internal/domain"
)

// SMSDispatcher posts to a generic HTTP SMS gateway. The provider is a plain
// send(address, content) capability; everything about templating and gating
// happens before this point.
type SMSDispatcher struct {
	gatewayURL string
	apiKey     string
	senderID   string
	httpClient *http.Client
}

func NewSMSDispatcher(cfg *config.Config) *SMSDispatcher {
	return &SMSDispatcher{
		gatewayURL: cfg.SMSGatewayURL,
		apiKey:     cfg.SMSAPIKey,
		senderID:   cfg.SMSSenderID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *SMSDispatcher) Name() domain.Channel {
	return domain.ChannelSMS
}

func (d *SMSDispatcher) Send(ctx context.Context, profile *domain.Profile, notif *domain.Notification) error {
	if d.gatewayURL == "" {
		return fmt.Errorf("sms gateway not configured")
	}
	if profile.Phone == nil || *profile.Phone == "" {
		return fmt.Errorf("recipient %s has no phone number", profile.ID)
	}

	payload, err := json.Marshal(map[string]string{
		"to":      *profile.Phone,
		"from":    d.senderID,
		"message": fmt.Sprintf("%s: %s", notif.Title, notif.Message),
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", *profile.Phone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

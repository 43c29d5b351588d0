package channel

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"

	"talktime/internal/config"
	"talktime/internal/domain"
)

const emailTemplate = `
<div style="font-family: sans-serif; max-width: 560px; margin: 0 auto;">
	<h2 style="color: #1a4731;">{{.Title}}</h2>
	<p>Hi {{.Name}},</p>
	<p>{{.Message}}</p>
	{{if .ActionURL}}<p><a href="{{.ActionURL}}" style="background: #1a4731; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Open TalkTime</a></p>{{end}}
	<p style="color: #6b7280; font-size: 13px;">You can manage notification settings from your TalkTime profile.</p>
</div>`

type EmailDispatcher struct {
	client    *resend.Client
	fromEmail string
	domain    string
	tmpl      *template.Template
}

func NewEmailDispatcher(cfg *config.Config) *EmailDispatcher {
	return &EmailDispatcher{
		client:    resend.NewClient(cfg.ResendAPIKey),
		fromEmail: cfg.FromEmail,
		domain:    cfg.Domain,
		tmpl:      template.Must(template.New("notification").Parse(emailTemplate)),
	}
}

func (d *EmailDispatcher) Name() domain.Channel {
	return domain.ChannelEmail
}

func (d *EmailDispatcher) Send(ctx context.Context, profile *domain.Profile, notif *domain.Notification) error {
	if profile.Email == "" {
		return fmt.Errorf("recipient %s has no email address", profile.ID)
	}

	actionURL := ""
	if notif.ActionURL != nil {
		actionURL = fmt.Sprintf("https://%s%s", d.domain, *notif.ActionURL)
	}

	var body bytes.Buffer
	err := d.tmpl.Execute(&body, struct {
		Title     string
		Name      string
		Message   string
		ActionURL string
	}{
		Title:     notif.Title,
		Name:      profile.FullName,
		Message:   notif.Message,
		ActionURL: actionURL,
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("TalkTime <%s>", d.fromEmail),
		To:      []string{profile.Email},
		Subject: notif.Title,
		Html:    body.String(),
	}

	if _, err := d.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email to %s: %w", profile.Email, err)
	}
	return nil
}

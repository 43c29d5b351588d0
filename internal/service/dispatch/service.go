package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"talktime/internal/channel"
	"talktime/internal/domain"
	"talktime/internal/realtime"
	"talktime/internal/repository"
	"talktime/internal/service/preference"
)

// Draft is the caller-supplied shape of a notification before persistence.
type Draft struct {
	RecipientID   uuid.UUID
	RecipientRole domain.Role
	Type          domain.NotificationType
	Priority      domain.Priority
	Title         string
	Message       string
	Metadata      json.RawMessage
	Channels      []domain.Channel
	Options       Options
}

// Options carries the presentation hints a caller may attach.
type Options struct {
	Persistent         bool
	RequireInteraction bool
	AutoDeleteAfter    *time.Time
	ActionURL          *string
	Icon               *string
	Badge              *string
	Tag                *string
}

// Service is the notification dispatch orchestrator. The persisted row is
// the source of truth: it is written before any channel is attempted, so
// in-app history survives every provider outage.
type Service interface {
	// Send persists a new notification and delivers it immediately.
	Send(ctx context.Context, draft Draft) (*domain.Notification, error)

	// Deliver fans an already-persisted notification out across the given
	// channels without creating a new row. Used by Send and by the due
	// processor. It returns the channels that succeeded; individual channel
	// failures never surface as an error.
	Deliver(ctx context.Context, notif *domain.Notification, channels []domain.Channel) ([]domain.Channel, error)
}

type service struct {
	notifRepo   repository.NotificationRepository
	userRepo    repository.UserRepository
	resolver    preference.Resolver
	publisher   realtime.Publisher
	dispatchers map[domain.Channel]channel.Dispatcher
	timeout     time.Duration
}

func NewService(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	resolver preference.Resolver,
	publisher realtime.Publisher,
	dispatchers []channel.Dispatcher,
	channelTimeout time.Duration,
) Service {
	byName := make(map[domain.Channel]channel.Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		byName[d.Name()] = d
	}
	if channelTimeout <= 0 {
		channelTimeout = 8 * time.Second
	}
	return &service{
		notifRepo:   notifRepo,
		userRepo:    userRepo,
		resolver:    resolver,
		publisher:   publisher,
		dispatchers: byName,
		timeout:     channelTimeout,
	}
}

func (s *service) Send(ctx context.Context, draft Draft) (*domain.Notification, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	priority := draft.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	channels := draft.Channels
	if len(channels) == 0 {
		channels = domain.DefaultChannels()
	}

	notif := &domain.Notification{
		ID:                 uuid.New(),
		RecipientID:        draft.RecipientID,
		RecipientRole:      draft.RecipientRole,
		Type:               draft.Type,
		Priority:           priority,
		Title:              draft.Title,
		Message:            draft.Message,
		Metadata:           draft.Metadata,
		ChannelsSent:       pq.StringArray{},
		IsPersistent:       draft.Options.Persistent,
		RequireInteraction: draft.Options.RequireInteraction,
		AutoDeleteAfter:    draft.Options.AutoDeleteAfter,
		ActionURL:          draft.Options.ActionURL,
		Icon:               draft.Options.Icon,
		Badge:              draft.Options.Badge,
		Tag:                draft.Options.Tag,
	}

	if err := s.notifRepo.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	if _, err := s.Deliver(ctx, notif, channels); err != nil {
		// The row exists; delivery bookkeeping problems are not the
		// caller's problem.
		log.Printf("Delivery bookkeeping failed for notification %s: %v", notif.ID, err)
	}

	return notif, nil
}

func (s *service) Deliver(ctx context.Context, notif *domain.Notification, channels []domain.Channel) ([]domain.Channel, error) {
	// The live-update event goes out regardless of what the external
	// channels do; the in-app surface must never wait on a provider.
	if err := s.publisher.PublishNotification(ctx, notif); err != nil {
		log.Printf("Realtime publish failed for notification %s: %v", notif.ID, err)
	}

	results := make(map[string]string, len(channels))
	var sent []domain.Channel

	profile, err := s.userRepo.GetProfile(ctx, notif.RecipientID, notif.RecipientRole)
	if err != nil {
		log.Printf("Profile lookup failed for %s/%s: %v", notif.RecipientRole, notif.RecipientID, err)
	}

	if containsChannel(channels, domain.ChannelInApp) {
		sent = append(sent, domain.ChannelInApp)
		results[string(domain.ChannelInApp)] = "delivered"
	}

	if profile == nil {
		if err == nil {
			log.Printf("Recipient %s/%s not found, skipping external channels", notif.RecipientRole, notif.RecipientID)
		}
		for _, ch := range channels {
			if ch != domain.ChannelInApp {
				results[string(ch)] = "skipped: recipient not found"
			}
		}
		return sent, s.recordDelivery(ctx, notif, sent, results)
	}

	prefs, err := s.resolver.Get(ctx, notif.RecipientID)
	if err != nil {
		log.Printf("Preference lookup failed for %s, using defaults: %v", notif.RecipientID, err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, ch := range dedupe(channels) {
		if ch == domain.ChannelInApp {
			continue
		}

		dispatcher, ok := s.dispatchers[ch]
		if !ok {
			log.Printf("Unknown or unavailable channel %q, skipping", ch)
			results[string(ch)] = "skipped: unknown channel"
			continue
		}

		if !s.resolver.ShouldSend(prefs, ch, notif.Type, notif.Priority) {
			results[string(ch)] = "skipped: preference"
			continue
		}

		wg.Add(1)
		go func(ch domain.Channel, d channel.Dispatcher) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := d.Send(cctx, profile, notif); err != nil {
				log.Printf("Channel %s failed for notification %s: %v", ch, notif.ID, err)
				mu.Lock()
				results[string(ch)] = "failed: " + err.Error()
				mu.Unlock()
				return
			}

			mu.Lock()
			sent = append(sent, ch)
			results[string(ch)] = "sent"
			mu.Unlock()
		}(ch, dispatcher)
	}

	wg.Wait()

	return sent, s.recordDelivery(ctx, notif, sent, results)
}

func (s *service) recordDelivery(ctx context.Context, notif *domain.Notification, sent []domain.Channel, results map[string]string) error {
	status, err := json.Marshal(map[string]interface{}{
		"completed_at": time.Now().UTC(),
		"results":      results,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery status: %w", err)
	}

	channelsSent := make([]string, len(sent))
	for i, ch := range sent {
		channelsSent[i] = string(ch)
	}

	if err := s.notifRepo.UpdateDelivery(ctx, notif.ID, channelsSent, status); err != nil {
		return fmt.Errorf("update delivery state: %w", err)
	}

	notif.ChannelsSent = pq.StringArray(channelsSent)
	notif.DeliveryStatus = status
	return nil
}

func validateDraft(draft Draft) error {
	if draft.RecipientID == uuid.Nil {
		return fmt.Errorf("draft missing recipient id")
	}
	if !draft.RecipientRole.IsValid() {
		return fmt.Errorf("draft has invalid recipient role %q", draft.RecipientRole)
	}
	if draft.Type == "" {
		return fmt.Errorf("draft missing notification type")
	}
	if draft.Title == "" || draft.Message == "" {
		return fmt.Errorf("draft missing title or message")
	}
	if draft.Priority != "" && !draft.Priority.IsValid() {
		return fmt.Errorf("draft has invalid priority %q", draft.Priority)
	}
	return nil
}

func containsChannel(channels []domain.Channel, target domain.Channel) bool {
	for _, ch := range channels {
		if ch == target {
			return true
		}
	}
	return false
}

func dedupe(channels []domain.Channel) []domain.Channel {
	seen := make(map[domain.Channel]struct{}, len(channels))
	out := channels[:0:0]
	for _, ch := range channels {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}

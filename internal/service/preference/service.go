package preference

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"talktime/internal/domain"
	"talktime/internal/repository"
)

const cacheTTL = 5 * time.Minute

// Resolver answers "should this channel fire for this notification" with a
// short-lived per-recipient cache. Settings-update paths must call
// Invalidate; the resolver never polls for changes.
type Resolver interface {
	Get(ctx context.Context, recipientID uuid.UUID) (domain.Preferences, error)
	Invalidate(recipientID uuid.UUID)
	ShouldSend(prefs domain.Preferences, ch domain.Channel, notifType domain.NotificationType, priority domain.Priority) bool
}

type cacheEntry struct {
	prefs     domain.Preferences
	expiresAt time.Time
}

type resolver struct {
	userRepo repository.UserRepository
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
}

func NewResolver(userRepo repository.UserRepository) Resolver {
	return &resolver{
		userRepo: userRepo,
		ttl:      cacheTTL,
		now:      time.Now,
		cache:    make(map[uuid.UUID]cacheEntry),
	}
}

func (r *resolver) Get(ctx context.Context, recipientID uuid.UUID) (domain.Preferences, error) {
	r.mu.RLock()
	entry, ok := r.cache[recipientID]
	r.mu.RUnlock()

	if ok && r.now().Before(entry.expiresAt) {
		return entry.prefs, nil
	}

	stored, err := r.userRepo.GetPreferences(ctx, recipientID)
	if err != nil {
		return domain.DefaultPreferences(), err
	}

	prefs := domain.DefaultPreferences()
	if stored != nil {
		prefs = *stored
	}

	r.mu.Lock()
	r.cache[recipientID] = cacheEntry{prefs: prefs, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return prefs, nil
}

func (r *resolver) Invalidate(recipientID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, recipientID)
	r.mu.Unlock()
}

// ShouldSend gates one channel for one notification. In-app is always on;
// SMS is opt-in per sub-category; push defaults on unless disabled; email
// follows the per-category toggles but skips low-priority chatter.
func (r *resolver) ShouldSend(prefs domain.Preferences, ch domain.Channel, notifType domain.NotificationType, priority domain.Priority) bool {
	switch ch {
	case domain.ChannelInApp:
		return true
	case domain.ChannelEmail:
		return shouldEmail(prefs.Email, notifType, priority)
	case domain.ChannelSMS:
		return shouldSMS(prefs.SMS, notifType, priority)
	case domain.ChannelPush:
		return shouldPush(prefs.Push, notifType)
	default:
		return false
	}
}

func shouldEmail(p domain.EmailPreferences, notifType domain.NotificationType, priority domain.Priority) bool {
	if priority == domain.PriorityLow {
		return false
	}
	switch {
	case notifType.IsReminder():
		return p.MeetingReminders
	case notifType == domain.NotifGeneral:
		return p.SystemUpdates
	default:
		return p.MeetingUpdates
	}
}

func shouldSMS(p domain.SMSPreferences, notifType domain.NotificationType, priority domain.Priority) bool {
	if notifType.IsReminder() && p.MeetingReminders {
		return true
	}
	return priority == domain.PriorityUrgent && p.UrgentAlerts
}

func shouldPush(p domain.PushPreferences, notifType domain.NotificationType) bool {
	if !p.Enabled {
		return false
	}
	switch {
	case notifType.IsReminder():
		return p.MeetingReminders
	case notifType == domain.NotifGeneral:
		return true
	default:
		return p.MeetingUpdates
	}
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"talktime/internal/domain"
	"talktime/internal/repository"
)

type tier struct {
	offset             time.Duration
	notifType          domain.NotificationType
	priority           domain.Priority
	requireInteraction bool
}

// Reminder tiers, longest offset first. Only the final tier demands
// interaction because it is the one that precedes auto-launch.
var reminderTiers = []tier{
	{offset: 30 * time.Minute, notifType: domain.NotifMeetingReminder30, priority: domain.PriorityHigh},
	{offset: 10 * time.Minute, notifType: domain.NotifMeetingReminder10, priority: domain.PriorityHigh},
	{offset: 5 * time.Minute, notifType: domain.NotifMeetingReminder5, priority: domain.PriorityUrgent, requireInteraction: true},
}

// Service plans future reminder rows for a meeting. It is deliberately not
// idempotent: callers must CancelReminders before re-scheduling.
type Service interface {
	ScheduleReminders(ctx context.Context, meeting *domain.Meeting) ([]uuid.UUID, error)
	CancelReminders(ctx context.Context, meetingID uuid.UUID) error
}

type service struct {
	notifRepo repository.NotificationRepository
	userRepo  repository.UserRepository
	now       func() time.Time
}

func NewService(notifRepo repository.NotificationRepository, userRepo repository.UserRepository) Service {
	return &service{
		notifRepo: notifRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

func (s *service) ScheduleReminders(ctx context.Context, meeting *domain.Meeting) ([]uuid.UUID, error) {
	volunteer, err := s.userRepo.GetProfile(ctx, meeting.VolunteerID, domain.RoleVolunteer)
	if err != nil {
		return nil, fmt.Errorf("load volunteer profile: %w", err)
	}
	student, err := s.userRepo.GetProfile(ctx, meeting.StudentID, domain.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("load student profile: %w", err)
	}

	participants := []struct {
		id          uuid.UUID
		role        domain.Role
		counterpart string
	}{
		{id: meeting.VolunteerID, role: domain.RoleVolunteer, counterpart: displayName(student)},
		{id: meeting.StudentID, role: domain.RoleStudent, counterpart: displayName(volunteer)},
	}

	now := s.now()
	var created []uuid.UUID

	for _, t := range reminderTiers {
		scheduledFor := meeting.ScheduledTime.Add(-t.offset)
		if !scheduledFor.After(now) {
			// Too late for this tier; not an error, just no reminder.
			continue
		}

		minutes := int(t.offset.Minutes())
		for _, p := range participants {
			tag := fmt.Sprintf("meeting-%s-reminder", meeting.ID)
			actionURL := fmt.Sprintf("/meetings/%s", meeting.ID)
			sf := scheduledFor

			notif := &domain.Notification{
				ID:            uuid.New(),
				RecipientID:   p.id,
				RecipientRole: p.role,
				Type:          t.notifType,
				Priority:      t.priority,
				Title:         "Upcoming TalkTime meeting",
				Message: fmt.Sprintf("Your meeting with %s starts in %d minutes.",
					p.counterpart, minutes),
				Metadata: domain.MeetingMetadata{
					MeetingID:       meeting.ID,
					RoomID:          meeting.RoomID,
					CounterpartName: p.counterpart,
				}.Marshal(),
				ScheduledFor:       &sf,
				ChannelsSent:       pq.StringArray{},
				IsPersistent:       true,
				RequireInteraction: t.requireInteraction,
				ActionURL:          &actionURL,
				Tag:                &tag,
			}

			if err := s.notifRepo.Create(ctx, notif); err != nil {
				// One participant's row failing should not cost the other
				// theirs.
				log.Printf("Failed to create %s reminder for %s/%s: %v", t.notifType, p.role, p.id, err)
				continue
			}
			created = append(created, notif.ID)
		}
	}

	return created, nil
}

func (s *service) CancelReminders(ctx context.Context, meetingID uuid.UUID) error {
	deleted, err := s.notifRepo.DeleteUnsentByMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("cancel reminders for meeting %s: %w", meetingID, err)
	}
	if deleted > 0 {
		log.Printf("Canceled %d pending reminders for meeting %s", deleted, meetingID)
	}
	return nil
}

func displayName(p *domain.Profile) string {
	if p == nil || p.FullName == "" {
		return "your TalkTime partner"
	}
	return p.FullName
}

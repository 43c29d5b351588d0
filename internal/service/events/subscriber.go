package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"talktime/internal/domain"
	"talktime/internal/service/dispatch"
	"talktime/internal/service/scheduler"
)

// MeetingEventsChannel is the stream meeting management publishes on.
const MeetingEventsChannel = "meetings:events"

const timeLayout = "Mon, 2 Jan 2006 at 3:04 PM (MST)"

// ProfileStore is the read-only identity lookup the subscriber needs for
// names and timezones.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Profile, error)
}

// Subscriber consumes meeting lifecycle events and translates them into
// immediate notifications and scheduler calls. It is the fault barrier for
// the stream: no handler error ever stops consumption.
type Subscriber struct {
	client    *redis.Client
	dispatch  dispatch.Service
	scheduler scheduler.Service
	profiles  ProfileStore

	pubsub *redis.PubSub
	wg     sync.WaitGroup

	// Events for one meeting are serialized so a reschedule can never race
	// its own cancel step.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewSubscriber(client *redis.Client, dispatchSvc dispatch.Service, schedulerSvc scheduler.Service, profiles ProfileStore) *Subscriber {
	return &Subscriber{
		client:    client,
		dispatch:  dispatchSvc,
		scheduler: schedulerSvc,
		profiles:  profiles,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// Start subscribes to the meeting event stream and consumes it until the
// context is canceled or Close is called.
func (s *Subscriber) Start(ctx context.Context) error {
	s.pubsub = s.client.Subscribe(ctx, MeetingEventsChannel)

	// Force the subscription to be established before returning.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", MeetingEventsChannel, err)
	}

	ch := s.pubsub.Channel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range ch {
			s.handleMessage(ctx, msg.Payload)
		}
	}()

	log.Printf("Subscribed to %s", MeetingEventsChannel)
	return nil
}

func (s *Subscriber) Close() {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	s.wg.Wait()
}

func (s *Subscriber) handleMessage(ctx context.Context, payload string) {
	var event domain.MeetingEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("Dropping malformed meeting event: %v", err)
		return
	}

	if err := s.handleEvent(ctx, event); err != nil {
		log.Printf("Meeting event %s failed: %v", event.Type, err)
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event domain.MeetingEvent) error {
	switch event.Type {
	case domain.EventMeetingCreated:
		var data domain.MeetingCreatedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return s.withMeetingLock(data.MeetingID, func() error { return s.handleCreated(ctx, data) })

	case domain.EventMeetingRescheduled:
		var data domain.MeetingRescheduledData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return s.withMeetingLock(data.MeetingID, func() error { return s.handleRescheduled(ctx, data) })

	case domain.EventMeetingCanceled:
		var data domain.MeetingCanceledData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return s.withMeetingLock(data.MeetingID, func() error { return s.handleCanceled(ctx, data) })

	case domain.EventMeetingEnded:
		var data domain.MeetingEndedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return s.withMeetingLock(data.MeetingID, func() error { return s.handleEnded(ctx, data) })

	case domain.EventMeetingMissed:
		var data domain.MeetingMissedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return s.withMeetingLock(data.MeetingID, func() error { return s.handleMissed(ctx, data) })

	default:
		log.Printf("Ignoring unknown meeting event type %q", event.Type)
		return nil
	}
}

func (s *Subscriber) withMeetingLock(meetingID uuid.UUID, fn func() error) error {
	s.locksMu.Lock()
	lock, ok := s.locks[meetingID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[meetingID] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// participants loads both sides of a meeting. A missing profile comes back
// nil and callers degrade to placeholder names.
func (s *Subscriber) participants(ctx context.Context, volunteerID, studentID uuid.UUID) (volunteer, student *domain.Profile) {
	var err error
	volunteer, err = s.profiles.GetProfile(ctx, volunteerID, domain.RoleVolunteer)
	if err != nil {
		log.Printf("Volunteer %s lookup failed: %v", volunteerID, err)
	}
	student, err = s.profiles.GetProfile(ctx, studentID, domain.RoleStudent)
	if err != nil {
		log.Printf("Student %s lookup failed: %v", studentID, err)
	}
	return volunteer, student
}

func (s *Subscriber) handleCreated(ctx context.Context, data domain.MeetingCreatedData) error {
	volunteer, student := s.participants(ctx, data.VolunteerID, data.StudentID)

	meta := domain.MeetingMetadata{MeetingID: data.MeetingID, RoomID: data.RoomID}

	studentMeta := meta
	studentMeta.CounterpartName = displayName(volunteer)
	s.notify(ctx, data.StudentID, domain.RoleStudent, dispatch.Draft{
		Type:     domain.NotifMeetingScheduled,
		Priority: domain.PriorityHigh,
		Title:    "New meeting scheduled",
		Message: fmt.Sprintf("%s scheduled a meeting with you on %s.",
			studentMeta.CounterpartName, formatTimeFor(data.ScheduledTime, student)),
		Metadata: studentMeta.Marshal(),
	})

	volunteerMeta := meta
	volunteerMeta.CounterpartName = displayName(student)
	s.notify(ctx, data.VolunteerID, domain.RoleVolunteer, dispatch.Draft{
		Type:     domain.NotifMeetingScheduled,
		Priority: domain.PriorityMedium,
		Title:    "Meeting confirmed",
		Message: fmt.Sprintf("Your meeting with %s is confirmed for %s.",
			volunteerMeta.CounterpartName, formatTimeFor(data.ScheduledTime, volunteer)),
		Metadata: volunteerMeta.Marshal(),
	})

	_, err := s.scheduler.ScheduleReminders(ctx, &domain.Meeting{
		ID:            data.MeetingID,
		VolunteerID:   data.VolunteerID,
		StudentID:     data.StudentID,
		ScheduledTime: data.ScheduledTime,
		RoomID:        data.RoomID,
		Duration:      data.Duration,
	})
	return err
}

func (s *Subscriber) handleRescheduled(ctx context.Context, data domain.MeetingRescheduledData) error {
	if err := s.scheduler.CancelReminders(ctx, data.MeetingID); err != nil {
		log.Printf("Cancel before reschedule failed for meeting %s: %v", data.MeetingID, err)
	}

	volunteer, student := s.participants(ctx, data.VolunteerID, data.StudentID)

	both := []struct {
		id          uuid.UUID
		role        domain.Role
		profile     *domain.Profile
		counterpart *domain.Profile
	}{
		{data.VolunteerID, domain.RoleVolunteer, volunteer, student},
		{data.StudentID, domain.RoleStudent, student, volunteer},
	}

	for _, p := range both {
		// Old and new times are rendered in each recipient's own timezone.
		meta := domain.MeetingMetadata{
			MeetingID:       data.MeetingID,
			RoomID:          data.RoomID,
			CounterpartName: displayName(p.counterpart),
			OldTime:         formatTimeFor(data.OldTime, p.profile),
			NewTime:         formatTimeFor(data.NewTime, p.profile),
		}
		s.notify(ctx, p.id, p.role, dispatch.Draft{
			Type:     domain.NotifMeetingRescheduled,
			Priority: domain.PriorityHigh,
			Title:    "Meeting rescheduled",
			Message: fmt.Sprintf("Your meeting with %s moved from %s to %s.",
				meta.CounterpartName, meta.OldTime, meta.NewTime),
			Metadata: meta.Marshal(),
		})
	}

	_, err := s.scheduler.ScheduleReminders(ctx, &domain.Meeting{
		ID:            data.MeetingID,
		VolunteerID:   data.VolunteerID,
		StudentID:     data.StudentID,
		ScheduledTime: data.NewTime,
		RoomID:        data.RoomID,
	})
	return err
}

func (s *Subscriber) handleCanceled(ctx context.Context, data domain.MeetingCanceledData) error {
	if err := s.scheduler.CancelReminders(ctx, data.MeetingID); err != nil {
		log.Printf("Cancel reminders failed for meeting %s: %v", data.MeetingID, err)
	}

	volunteer, student := s.participants(ctx, data.VolunteerID, data.StudentID)

	both := []struct {
		id          uuid.UUID
		role        domain.Role
		profile     *domain.Profile
		counterpart *domain.Profile
	}{
		{data.VolunteerID, domain.RoleVolunteer, volunteer, student},
		{data.StudentID, domain.RoleStudent, student, volunteer},
	}

	for _, p := range both {
		var message string
		if p.id == data.ActorID && p.role == data.ActorRole {
			message = fmt.Sprintf("You canceled your meeting with %s scheduled for %s.",
				displayName(p.counterpart), formatTimeFor(data.ScheduledTime, p.profile))
		} else {
			message = fmt.Sprintf("%s canceled your meeting scheduled for %s.",
				displayName(p.counterpart), formatTimeFor(data.ScheduledTime, p.profile))
		}
		if data.Reason != "" {
			message += " Reason: " + data.Reason
		}

		s.notify(ctx, p.id, p.role, dispatch.Draft{
			Type:     domain.NotifMeetingCanceled,
			Priority: domain.PriorityHigh,
			Title:    "Meeting canceled",
			Message:  message,
			Metadata: domain.MeetingMetadata{
				MeetingID:       data.MeetingID,
				CounterpartName: displayName(p.counterpart),
			}.Marshal(),
		})
	}

	return nil
}

func (s *Subscriber) handleEnded(ctx context.Context, data domain.MeetingEndedData) error {
	volunteer, student := s.participants(ctx, data.VolunteerID, data.StudentID)

	completed := data.Status == "completed"

	both := []struct {
		id          uuid.UUID
		role        domain.Role
		counterpart *domain.Profile
	}{
		{data.VolunteerID, domain.RoleVolunteer, student},
		{data.StudentID, domain.RoleStudent, volunteer},
	}

	for _, p := range both {
		title := "Meeting ended"
		message := fmt.Sprintf("Your meeting with %s has ended (%s).", displayName(p.counterpart), data.Status)
		notifType := domain.NotifGeneral
		if completed {
			title = "Meeting completed"
			message = fmt.Sprintf("Great session! Your meeting with %s is complete.", displayName(p.counterpart))
			notifType = domain.NotifMeetingCompleted
		}

		s.notify(ctx, p.id, p.role, dispatch.Draft{
			Type:     notifType,
			Priority: domain.PriorityMedium,
			Title:    title,
			Message:  message,
			Metadata: domain.MeetingMetadata{
				MeetingID:       data.MeetingID,
				CounterpartName: displayName(p.counterpart),
			}.Marshal(),
		})
	}

	return nil
}

func (s *Subscriber) handleMissed(ctx context.Context, data domain.MeetingMissedData) error {
	volunteer, student := s.participants(ctx, data.VolunteerID, data.StudentID)

	both := []struct {
		id          uuid.UUID
		role        domain.Role
		profile     *domain.Profile
		counterpart *domain.Profile
	}{
		{data.VolunteerID, domain.RoleVolunteer, volunteer, student},
		{data.StudentID, domain.RoleStudent, student, volunteer},
	}

	for _, p := range both {
		s.notify(ctx, p.id, p.role, dispatch.Draft{
			Type:     domain.NotifMeetingMissed,
			Priority: domain.PriorityHigh,
			Title:    "Meeting missed",
			Message: fmt.Sprintf("Your meeting with %s on %s was missed because nobody joined in time.",
				displayName(p.counterpart), formatTimeFor(data.ScheduledTime, p.profile)),
			Metadata: domain.MeetingMetadata{
				MeetingID:       data.MeetingID,
				CounterpartName: displayName(p.counterpart),
			}.Marshal(),
		})
	}

	return nil
}

// notify sends one immediate notification and only logs failures: one
// recipient's bad luck never costs the other their notification.
func (s *Subscriber) notify(ctx context.Context, recipientID uuid.UUID, role domain.Role, draft dispatch.Draft) {
	draft.RecipientID = recipientID
	draft.RecipientRole = role

	if _, err := s.dispatch.Send(ctx, draft); err != nil {
		log.Printf("Notification to %s/%s failed: %v", role, recipientID, err)
	}
}

// formatTimeFor renders an instant in the recipient's stored timezone,
// resolved at formatting time. Missing or invalid zones fall back to UTC.
func formatTimeFor(t time.Time, profile *domain.Profile) string {
	loc := time.UTC
	if profile != nil && profile.Timezone != nil && *profile.Timezone != "" {
		if parsed, err := time.LoadLocation(*profile.Timezone); err == nil {
			loc = parsed
		} else {
			log.Printf("Invalid timezone %q for %s, using UTC", *profile.Timezone, profile.ID)
		}
	}
	return t.In(loc).Format(timeLayout)
}

func displayName(p *domain.Profile) string {
	if p == nil || p.FullName == "" {
		return "your TalkTime partner"
	}
	return p.FullName
}

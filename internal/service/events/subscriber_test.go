package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talktime/internal/domain"
	"talktime/internal/mocks"
	"talktime/internal/service/dispatch"
)

type fixture struct {
	subscriber *Subscriber
	dispatch   *mocks.DispatchService
	scheduler  *mocks.SchedulerService
	profiles   *mocks.UserRepository

	volunteerID uuid.UUID
	studentID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dispatch:    new(mocks.DispatchService),
		scheduler:   new(mocks.SchedulerService),
		profiles:    new(mocks.UserRepository),
		volunteerID: uuid.New(),
		studentID:   uuid.New(),
	}
	f.subscriber = NewSubscriber(nil, f.dispatch, f.scheduler, f.profiles)
	return f
}

func (f *fixture) stubProfiles(volunteerTZ, studentTZ string) {
	var vtz, stz *string
	if volunteerTZ != "" {
		vtz = &volunteerTZ
	}
	if studentTZ != "" {
		stz = &studentTZ
	}
	f.profiles.On("GetProfile", mock.Anything, f.volunteerID, domain.RoleVolunteer).
		Return(&domain.Profile{ID: f.volunteerID, Role: domain.RoleVolunteer, FullName: "Grace", Timezone: vtz}, nil)
	f.profiles.On("GetProfile", mock.Anything, f.studentID, domain.RoleStudent).
		Return(&domain.Profile{ID: f.studentID, Role: domain.RoleStudent, FullName: "Baraka", Timezone: stz}, nil)
}

func (f *fixture) captureDrafts(drafts *[]dispatch.Draft) {
	f.dispatch.On("Send", mock.Anything, mock.AnythingOfType("dispatch.Draft")).
		Run(func(args mock.Arguments) {
			*drafts = append(*drafts, args.Get(1).(dispatch.Draft))
		}).Return(&domain.Notification{}, nil)
}

func mustEvent(t *testing.T, eventType string, data any) domain.MeetingEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return domain.MeetingEvent{Type: eventType, Data: raw}
}

func draftFor(t *testing.T, drafts []dispatch.Draft, id uuid.UUID) dispatch.Draft {
	t.Helper()
	for _, d := range drafts {
		if d.RecipientID == id {
			return d
		}
	}
	t.Fatalf("no draft for recipient %s", id)
	return dispatch.Draft{}
}

func TestHandleEvent_Created(t *testing.T) {
	f := newFixture(t)
	f.stubProfiles("", "")

	var drafts []dispatch.Draft
	f.captureDrafts(&drafts)
	f.scheduler.On("ScheduleReminders", mock.Anything, mock.MatchedBy(func(m *domain.Meeting) bool {
		return m.RoomID == "room-9" && m.Duration == 40
	})).Return([]uuid.UUID{uuid.New()}, nil).Once()

	event := mustEvent(t, domain.EventMeetingCreated, domain.MeetingCreatedData{
		MeetingID:     uuid.New(),
		VolunteerID:   f.volunteerID,
		StudentID:     f.studentID,
		ScheduledTime: time.Now().Add(time.Hour),
		RoomID:        "room-9",
		Duration:      40,
	})

	require.NoError(t, f.subscriber.handleEvent(context.Background(), event))
	require.Len(t, drafts, 2)

	student := draftFor(t, drafts, f.studentID)
	assert.Equal(t, domain.NotifMeetingScheduled, student.Type)
	assert.Equal(t, domain.PriorityHigh, student.Priority)
	assert.Equal(t, "New meeting scheduled", student.Title)
	assert.Contains(t, student.Message, "Grace")

	volunteer := draftFor(t, drafts, f.volunteerID)
	assert.Equal(t, domain.PriorityMedium, volunteer.Priority)
	assert.Equal(t, "Meeting confirmed", volunteer.Title)
	assert.Contains(t, volunteer.Message, "Baraka")

	f.scheduler.AssertExpectations(t)
}

func TestHandleEvent_RescheduledCancelsBeforeScheduling(t *testing.T) {
	f := newFixture(t)
	f.stubProfiles("", "")

	meetingID := uuid.New()
	newTime := time.Now().Add(2 * time.Hour)

	var order []string
	var mu sync.Mutex
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	f.scheduler.On("CancelReminders", mock.Anything, meetingID).
		Run(func(mock.Arguments) { record("cancel") }).Return(nil).Once()
	f.scheduler.On("ScheduleReminders", mock.Anything, mock.MatchedBy(func(m *domain.Meeting) bool {
		return m.ID == meetingID && m.ScheduledTime.Equal(newTime)
	})).Run(func(mock.Arguments) { record("schedule") }).
		Return([]uuid.UUID{}, nil).Once()

	var drafts []dispatch.Draft
	f.captureDrafts(&drafts)

	event := mustEvent(t, domain.EventMeetingRescheduled, domain.MeetingRescheduledData{
		MeetingID:   meetingID,
		VolunteerID: f.volunteerID,
		StudentID:   f.studentID,
		OldTime:     time.Now().Add(time.Hour),
		NewTime:     newTime,
		RoomID:      "room-9",
		ActorID:     f.studentID,
		ActorRole:   domain.RoleStudent,
	})

	require.NoError(t, f.subscriber.handleEvent(context.Background(), event))

	require.Equal(t, []string{"cancel", "schedule"}, order)
	require.Len(t, drafts, 2)
	for _, d := range drafts {
		assert.Equal(t, domain.NotifMeetingRescheduled, d.Type)
		assert.Equal(t, domain.PriorityHigh, d.Priority)
		assert.Contains(t, d.Message, "moved from")
	}
}

func TestHandleEvent_RescheduledFormatsTimesPerRecipient(t *testing.T) {
	f := newFixture(t)
	f.stubProfiles("Asia/Manila", "Africa/Nairobi")

	newTime := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

	f.scheduler.On("CancelReminders", mock.Anything, mock.Anything).Return(nil)
	f.scheduler.On("ScheduleReminders", mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)

	var drafts []dispatch.Draft
	f.captureDrafts(&drafts)

	event := mustEvent(t, domain.EventMeetingRescheduled, domain.MeetingRescheduledData{
		MeetingID:   uuid.New(),
		VolunteerID: f.volunteerID,
		StudentID:   f.studentID,
		OldTime:     newTime.Add(-time.Hour),
		NewTime:     newTime,
		ActorID:     f.volunteerID,
		ActorRole:   domain.RoleVolunteer,
	})

	require.NoError(t, f.subscriber.handleEvent(context.Background(), event))
	require.Len(t, drafts, 2)

	// Manila is UTC+8, Nairobi UTC+3: noon UTC reads 8:00 PM and 3:00 PM.
	volunteer := draftFor(t, drafts, f.volunteerID)
	assert.Contains(t, volunteer.Message, "8:00 PM")
	student := draftFor(t, drafts, f.studentID)
	assert.Contains(t, student.Message, "3:00 PM")
}

func TestHandleEvent_CanceledWordsActorDifferently(t *testing.T) {
	f := newFixture(t)
	f.stubProfiles("", "")

	meetingID := uuid.New()
	f.scheduler.On("CancelReminders", mock.Anything, meetingID).Return(nil).Once()

	var drafts []dispatch.Draft
	f.captureDrafts(&drafts)

	event := mustEvent(t, domain.EventMeetingCanceled, domain.MeetingCanceledData{
		MeetingID:     meetingID,
		VolunteerID:   f.volunteerID,
		StudentID:     f.studentID,
		ScheduledTime: time.Now().Add(time.Hour),
		ActorID:       f.volunteerID,
		ActorRole:     domain.RoleVolunteer,
		Reason:        "family emergency",
	})

	require.NoError(t, f.subscriber.handleEvent(context.Background(), event))
	require.Len(t, drafts, 2)

	actor := draftFor(t, drafts, f.volunteerID)
	assert.True(t, strings.HasPrefix(actor.Message, "You canceled"))
	assert.Contains(t, actor.Message, "Reason: family emergency")

	other := draftFor(t, drafts, f.studentID)
	assert.True(t, strings.HasPrefix(other.Message, "Grace canceled"))

	f.scheduler.AssertExpectations(t)
	f.scheduler.AssertNotCalled(t, "ScheduleReminders", mock.Anything, mock.Anything)
}

func TestHandleEvent_EndedCompletedVersusOther(t *testing.T) {
	cases := []struct {
		name      string
		status    string
		wantType  domain.NotificationType
		wantTitle string
	}{
		{"completed", "completed", domain.NotifMeetingCompleted, "Meeting completed"},
		{"left early", "left_early", domain.NotifGeneral, "Meeting ended"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.stubProfiles("", "")

			var drafts []dispatch.Draft
			f.captureDrafts(&drafts)

			event := mustEvent(t, domain.EventMeetingEnded, domain.MeetingEndedData{
				MeetingID:   uuid.New(),
				VolunteerID: f.volunteerID,
				StudentID:   f.studentID,
				Status:      tc.status,
			})

			require.NoError(t, f.subscriber.handleEvent(context.Background(), event))
			require.Len(t, drafts, 2)
			for _, d := range drafts {
				assert.Equal(t, tc.wantType, d.Type)
				assert.Equal(t, tc.wantTitle, d.Title)
			}
		})
	}
}

func TestHandleEvent_Missed(t *testing.T) {
	f := newFixture(t)
	f.stubProfiles("", "")

	var drafts []dispatch.Draft
	f.captureDrafts(&drafts)

	event := mustEvent(t, domain.EventMeetingMissed, domain.MeetingMissedData{
		MeetingID:     uuid.New(),
		VolunteerID:   f.volunteerID,
		StudentID:     f.studentID,
		ScheduledTime: time.Now().Add(-time.Hour),
	})

	require.NoError(t, f.subscriber.handleEvent(context.Background(), event))
	require.Len(t, drafts, 2)
	for _, d := range drafts {
		assert.Equal(t, domain.NotifMeetingMissed, d.Type)
		assert.Equal(t, domain.PriorityHigh, d.Priority)
		assert.Contains(t, d.Message, "missed because nobody joined")
	}
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	f := newFixture(t)

	event := domain.MeetingEvent{Type: "meeting.exploded", Data: json.RawMessage(`{}`)}

	assert.NoError(t, f.subscriber.handleEvent(context.Background(), event))
	f.dispatch.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleEvent_MalformedPayloadErrors(t *testing.T) {
	f := newFixture(t)

	event := domain.MeetingEvent{Type: domain.EventMeetingCreated, Data: json.RawMessage(`not json`)}

	assert.Error(t, f.subscriber.handleEvent(context.Background(), event))
}

func TestFormatTimeFor_FallsBackToUTC(t *testing.T) {
	instant := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

	badZone := "Mars/Olympus"
	cases := []struct {
		name    string
		profile *domain.Profile
		want    string
	}{
		{"nil profile", nil, "12:00 PM"},
		{"no timezone", &domain.Profile{}, "12:00 PM"},
		{"invalid timezone", &domain.Profile{Timezone: &badZone}, "12:00 PM"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, formatTimeFor(instant, tc.profile), tc.want)
		})
	}
}

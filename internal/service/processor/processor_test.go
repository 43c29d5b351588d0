package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talktime/internal/domain"
	"talktime/internal/mocks"
	"talktime/internal/service/processor"
)

func dueReminder(notifType domain.NotificationType, priority domain.Priority, meetingID uuid.UUID) domain.Notification {
	scheduledFor := time.Now().Add(-time.Minute)
	return domain.Notification{
		ID:            uuid.New(),
		RecipientID:   uuid.New(),
		RecipientRole: domain.RoleStudent,
		Type:          notifType,
		Priority:      priority,
		Title:         "Upcoming TalkTime meeting",
		Message:       "Your meeting starts soon.",
		Metadata: domain.MeetingMetadata{
			MeetingID: meetingID,
			RoomID:    "room-7",
		}.Marshal(),
		ScheduledFor: &scheduledFor,
	}
}

func newProcessor(t *testing.T, notifRepo *mocks.NotificationRepository, meetingRepo *mocks.MeetingRepository, dispatcher *mocks.DispatchService, publisher *mocks.Publisher) *processor.Processor {
	t.Helper()
	p, err := processor.New(notifRepo, meetingRepo, dispatcher, publisher, time.Minute, 100)
	require.NoError(t, err)
	return p
}

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	_, err := processor.New(nil, nil, nil, nil, 0, 100)
	assert.Error(t, err)
}

func TestSweep_DeliversThenMarksSent(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	notif := dueReminder(domain.NotifMeetingReminder30, domain.PriorityHigh, uuid.New())

	notifRepo.On("ListDue", mock.Anything, mock.AnythingOfType("time.Time"), 100).
		Return([]domain.Notification{notif}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.AnythingOfType("*domain.Notification"),
		[]domain.Channel{domain.ChannelInApp, domain.ChannelPush, domain.ChannelEmail}).
		Return([]domain.Channel{domain.ChannelInApp, domain.ChannelPush}, nil).Once()
	notifRepo.On("MarkSent", mock.Anything, notif.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	notifRepo.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
	// Not a final-tier reminder, so no auto-launch broadcast.
	publisher.AssertNotCalled(t, "PublishAutoLaunch", mock.Anything, mock.Anything)
}

func TestSweep_DeliverFailureLeavesRowUnsent(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	notif := dueReminder(domain.NotifMeetingReminder10, domain.PriorityHigh, uuid.New())

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{notif}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("fan-out blew up")).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	// The row stays unsent for the next tick.
	notifRepo.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_RowFailureDoesNotStopBatch(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	bad := dueReminder(domain.NotifMeetingReminder30, domain.PriorityHigh, uuid.New())
	good := dueReminder(domain.NotifMeetingReminder30, domain.PriorityHigh, uuid.New())

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{bad, good}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.ID == bad.ID
	}), mock.Anything).Return(nil, errors.New("unavailable")).Once()
	dispatcher.On("Deliver", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.ID == good.ID
	}), mock.Anything).Return([]domain.Channel{domain.ChannelInApp}, nil).Once()
	notifRepo.On("MarkSent", mock.Anything, good.ID, mock.Anything).Return(nil).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	notifRepo.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestSweep_FinalTierTriggersAutoLaunch(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	meeting := &domain.Meeting{
		ID:            uuid.New(),
		VolunteerID:   uuid.New(),
		StudentID:     uuid.New(),
		ScheduledTime: time.Now().Add(5 * time.Minute),
		RoomID:        "room-7",
	}
	notif := dueReminder(domain.NotifMeetingReminder5, domain.PriorityUrgent, meeting.ID)

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{notif}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.Anything,
		[]domain.Channel{domain.ChannelInApp, domain.ChannelPush, domain.ChannelEmail, domain.ChannelSMS}).
		Return([]domain.Channel{domain.ChannelInApp}, nil).Once()
	notifRepo.On("MarkSent", mock.Anything, notif.ID, mock.Anything).Return(nil).Once()
	meetingRepo.On("GetByID", mock.Anything, meeting.ID).Return(meeting, nil).Once()
	publisher.On("PublishAutoLaunch", mock.Anything, mock.MatchedBy(func(e domain.AutoLaunchEvent) bool {
		return e.MeetingID == meeting.ID && e.RoomID == "room-7" &&
			e.VolunteerID == meeting.VolunteerID && e.StudentID == meeting.StudentID
	})).Return(nil).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	publisher.AssertExpectations(t)
	meetingRepo.AssertExpectations(t)
}

func TestSweep_AutoLaunchSkippedWhenMeetingGone(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	meetingID := uuid.New()
	notif := dueReminder(domain.NotifMeetingReminder5, domain.PriorityUrgent, meetingID)

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{notif}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.Channel{domain.ChannelInApp}, nil).Once()
	notifRepo.On("MarkSent", mock.Anything, notif.ID, mock.Anything).Return(nil).Once()
	meetingRepo.On("GetByID", mock.Anything, meetingID).Return(nil, nil).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	// The reminder itself still went out even though the launch was skipped.
	notifRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishAutoLaunch", mock.Anything, mock.Anything)
}

func TestSweep_AutoLaunchFailureDoesNotUndoDelivery(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	meetingRepo := new(mocks.MeetingRepository)
	dispatcher := new(mocks.DispatchService)
	publisher := new(mocks.Publisher)

	meeting := &domain.Meeting{ID: uuid.New(), RoomID: "room-7", ScheduledTime: time.Now()}
	notif := dueReminder(domain.NotifMeetingReminder5, domain.PriorityUrgent, meeting.ID)

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{notif}, nil).Once()
	dispatcher.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.Channel{domain.ChannelInApp}, nil).Once()
	notifRepo.On("MarkSent", mock.Anything, notif.ID, mock.Anything).Return(nil).Once()
	meetingRepo.On("GetByID", mock.Anything, meeting.ID).Return(meeting, nil).Once()
	publisher.On("PublishAutoLaunch", mock.Anything, mock.Anything).
		Return(errors.New("redis away")).Once()

	p := newProcessor(t, notifRepo, meetingRepo, dispatcher, publisher)
	p.Sweep(context.Background())

	notifRepo.AssertExpectations(t)
}

func TestSweep_EmptyBatchIsQuiet(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	dispatcher := new(mocks.DispatchService)

	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Return([]domain.Notification{}, nil).Once()

	p := newProcessor(t, notifRepo, new(mocks.MeetingRepository), dispatcher, new(mocks.Publisher))
	p.Sweep(context.Background())

	dispatcher.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_SweepsImmediately(t *testing.T) {
	notifRepo := new(mocks.NotificationRepository)
	dispatcher := new(mocks.DispatchService)

	swept := make(chan struct{})
	notifRepo.On("ListDue", mock.Anything, mock.Anything, 100).
		Run(func(args mock.Arguments) { close(swept) }).
		Return([]domain.Notification{}, nil).Once()

	p, err := processor.New(notifRepo, new(mocks.MeetingRepository), dispatcher, new(mocks.Publisher), time.Hour, 100)
	require.NoError(t, err)

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate sweep on start")
	}
}

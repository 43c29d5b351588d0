package preference_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talktime/internal/domain"
	"talktime/internal/mocks"
	"talktime/internal/service/preference"
)

func TestGet_MissingRecordFallsBackToDefaults(t *testing.T) {
	userRepo := new(mocks.UserRepository)
	recipientID := uuid.New()

	userRepo.On("GetPreferences", mock.Anything, recipientID).Return(nil, nil).Once()

	resolver := preference.NewResolver(userRepo)
	prefs, err := resolver.Get(context.Background(), recipientID)

	require.NoError(t, err)
	assert.True(t, prefs.Email.MeetingReminders)
	assert.False(t, prefs.SMS.MeetingReminders)
	assert.False(t, prefs.SMS.UrgentAlerts)
	assert.True(t, prefs.Push.Enabled)
}

func TestGet_CachesWithinTTL(t *testing.T) {
	userRepo := new(mocks.UserRepository)
	recipientID := uuid.New()

	stored := domain.DefaultPreferences()
	stored.Push.Enabled = false
	userRepo.On("GetPreferences", mock.Anything, recipientID).Return(&stored, nil).Once()

	resolver := preference.NewResolver(userRepo)

	first, err := resolver.Get(context.Background(), recipientID)
	require.NoError(t, err)
	second, err := resolver.Get(context.Background(), recipientID)
	require.NoError(t, err)

	assert.False(t, first.Push.Enabled)
	assert.Equal(t, first, second)
	// The store must only have been hit once.
	userRepo.AssertNumberOfCalls(t, "GetPreferences", 1)
}

func TestInvalidate_ForcesStoreReload(t *testing.T) {
	userRepo := new(mocks.UserRepository)
	recipientID := uuid.New()

	userRepo.On("GetPreferences", mock.Anything, recipientID).Return(nil, nil).Twice()

	resolver := preference.NewResolver(userRepo)

	_, err := resolver.Get(context.Background(), recipientID)
	require.NoError(t, err)

	resolver.Invalidate(recipientID)

	_, err = resolver.Get(context.Background(), recipientID)
	require.NoError(t, err)

	userRepo.AssertNumberOfCalls(t, "GetPreferences", 2)
}

func TestShouldSend_ChannelGating(t *testing.T) {
	resolver := preference.NewResolver(new(mocks.UserRepository))
	defaults := domain.DefaultPreferences()

	smsOptIn := domain.DefaultPreferences()
	smsOptIn.SMS.MeetingReminders = true
	smsOptIn.SMS.UrgentAlerts = true

	pushOff := domain.DefaultPreferences()
	pushOff.Push.Enabled = false

	cases := []struct {
		name      string
		prefs     domain.Preferences
		ch        domain.Channel
		notifType domain.NotificationType
		priority  domain.Priority
		want      bool
	}{
		{"in-app always on", defaults, domain.ChannelInApp, domain.NotifGeneral, domain.PriorityLow, true},
		{"email skips low priority", defaults, domain.ChannelEmail, domain.NotifMeetingScheduled, domain.PriorityLow, false},
		{"email on for reminders", defaults, domain.ChannelEmail, domain.NotifMeetingReminder30, domain.PriorityHigh, true},
		{"email on for updates", defaults, domain.ChannelEmail, domain.NotifMeetingRescheduled, domain.PriorityHigh, true},
		{"sms off by default even when urgent", defaults, domain.ChannelSMS, domain.NotifMeetingReminder5, domain.PriorityUrgent, false},
		{"sms reminder opt-in", smsOptIn, domain.ChannelSMS, domain.NotifMeetingReminder5, domain.PriorityUrgent, true},
		{"sms urgent opt-in covers non-reminders", smsOptIn, domain.ChannelSMS, domain.NotifMeetingCanceled, domain.PriorityUrgent, true},
		{"sms opt-in does not cover medium updates", smsOptIn, domain.ChannelSMS, domain.NotifMeetingScheduled, domain.PriorityMedium, false},
		{"push on by default", defaults, domain.ChannelPush, domain.NotifMeetingReminder10, domain.PriorityHigh, true},
		{"push master switch wins", pushOff, domain.ChannelPush, domain.NotifMeetingReminder10, domain.PriorityHigh, false},
		{"unknown channel never fires", defaults, domain.Channel("pigeon"), domain.NotifGeneral, domain.PriorityHigh, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolver.ShouldSend(tc.prefs, tc.ch, tc.notifType, tc.priority)
			assert.Equal(t, tc.want, got)
		})
	}
}

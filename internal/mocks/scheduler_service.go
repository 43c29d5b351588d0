package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"talktime/internal/domain"
)

type SchedulerService struct {
	mock.Mock
}

func (m *SchedulerService) ScheduleReminders(ctx context.Context, meeting *domain.Meeting) ([]uuid.UUID, error) {
	args := m.Called(ctx, meeting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *SchedulerService) CancelReminders(ctx context.Context, meetingID uuid.UUID) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

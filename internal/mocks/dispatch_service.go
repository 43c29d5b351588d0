package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"talktime/internal/domain"
	"talktime/internal/service/dispatch"
)

type DispatchService struct {
	mock.Mock
}

func (m *DispatchService) Send(ctx context.Context, draft dispatch.Draft) (*domain.Notification, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *DispatchService) Deliver(ctx context.Context, notif *domain.Notification, channels []domain.Channel) ([]domain.Channel, error) {
	args := m.Called(ctx, notif, channels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Channel), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"talktime/internal/domain"
)

type Publisher struct {
	mock.Mock
}

func (m *Publisher) PublishNotification(ctx context.Context, notif *domain.Notification) error {
	args := m.Called(ctx, notif)
	return args.Error(0)
}

func (m *Publisher) PublishAutoLaunch(ctx context.Context, event domain.AutoLaunchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

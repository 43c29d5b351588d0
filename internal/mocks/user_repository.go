package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"talktime/internal/domain"
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetProfile(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Profile, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *UserRepository) GetPreferences(ctx context.Context, id uuid.UUID) (*domain.Preferences, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Preferences), args.Error(1)
}

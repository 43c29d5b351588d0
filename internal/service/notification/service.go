package notification

import (
	"context"

	"github.com/google/uuid"

	"talktime/internal/domain"
	"talktime/internal/repository"
)

// Service is the read/CRUD side backing the notification endpoints. All
// operations are scoped to the authenticated (recipient id, role) pair.
type Service interface {
	List(ctx context.Context, recipientID uuid.UUID, role domain.Role, filter domain.NotificationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID, role domain.Role) (int64, error)
	MarkAsRead(ctx context.Context, id, recipientID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, role domain.Role) error
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
}

type service struct {
	notifRepo repository.NotificationRepository
}

func NewService(notifRepo repository.NotificationRepository) Service {
	return &service{notifRepo: notifRepo}
}

func (s *service) List(ctx context.Context, recipientID uuid.UUID, role domain.Role, filter domain.NotificationFilter, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	params.Validate()

	notifications, total, err := s.notifRepo.ListByRecipient(ctx, recipientID, role, filter, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Notification]{}, err
	}

	return domain.NewPaginatedResponse(notifications, params.Page, params.PageSize, total), nil
}

func (s *service) UnreadCount(ctx context.Context, recipientID uuid.UUID, role domain.Role) (int64, error) {
	return s.notifRepo.CountUnread(ctx, recipientID, role)
}

// MarkAsRead is idempotent: re-reading an already-read notification is a
// no-op, not an error.
func (s *service) MarkAsRead(ctx context.Context, id, recipientID uuid.UUID) error {
	return s.notifRepo.MarkAsRead(ctx, id, recipientID)
}

func (s *service) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, role domain.Role) error {
	return s.notifRepo.MarkAllAsRead(ctx, recipientID, role)
}

func (s *service) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	return s.notifRepo.Delete(ctx, id, recipientID)
}

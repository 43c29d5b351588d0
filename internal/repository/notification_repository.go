package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"talktime/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, role domain.Role, filter domain.NotificationFilter, params domain.PaginationParams) ([]domain.Notification, int64, error)
	MarkAsRead(ctx context.Context, id, recipientID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, role domain.Role) error
	CountUnread(ctx context.Context, recipientID uuid.UUID, role domain.Role) (int64, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	UpdateDelivery(ctx context.Context, id uuid.UUID, channelsSent []string, status json.RawMessage) error
	DeleteUnsentByMeeting(ctx context.Context, meetingID uuid.UUID) (int64, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_id, recipient_role, type, priority, title, message,
			metadata, scheduled_for, is_sent, sent_at, channels_sent,
			is_persistent, require_interaction, auto_delete_after,
			action_url, icon, badge, tag
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		notif.ID, notif.RecipientID, notif.RecipientRole, notif.Type, notif.Priority,
		notif.Title, notif.Message, notif.Metadata, notif.ScheduledFor,
		notif.IsSent, notif.SentAt, notif.ChannelsSent,
		notif.IsPersistent, notif.RequireInteraction, notif.AutoDeleteAfter,
		notif.ActionURL, notif.Icon, notif.Badge, notif.Tag,
	).Scan(&notif.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var notif domain.Notification
	query := `SELECT * FROM notifications WHERE id = $1`

	err := r.db.GetContext(ctx, &notif, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &notif, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, role domain.Role, filter domain.NotificationFilter, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	params.Validate()

	where := `WHERE recipient_id = $1 AND recipient_role = $2`
	args := []interface{}{recipientID, role}

	switch filter.Status {
	case domain.ReadStatusRead:
		where += ` AND is_read = true`
	case domain.ReadStatusUnread:
		where += ` AND is_read = false`
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where += fmt.Sprintf(` AND priority = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(` AND type = $%d`, len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM notifications ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, params.PageSize, params.Offset())
	query := fmt.Sprintf(`
		SELECT * FROM notifications %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var notifications []domain.Notification
	err := r.db.SelectContext(ctx, &notifications, query, args...)
	return notifications, total, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, recipientID uuid.UUID) error {
	query := `
		UPDATE notifications SET is_read = true, read_at = NOW()
		WHERE id = $1 AND recipient_id = $2 AND is_read = false`

	_, err := r.db.ExecContext(ctx, query, id, recipientID)
	return err
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, role domain.Role) error {
	query := `
		UPDATE notifications SET is_read = true, read_at = NOW()
		WHERE recipient_id = $1 AND recipient_role = $2 AND is_read = false`

	_, err := r.db.ExecContext(ctx, query, recipientID, role)
	return err
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID, role domain.Role) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND recipient_role = $2 AND is_read = false`

	err := r.db.GetContext(ctx, &count, query, recipientID, role)
	return count, err
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, recipientID)
	return err
}

// ListDue returns unsent scheduled rows whose time has come, oldest first.
// The limit bounds one processor tick; anything beyond it waits for the next.
func (r *notificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	query := `
		SELECT * FROM notifications
		WHERE scheduled_for IS NOT NULL AND scheduled_for <= $1 AND is_sent = false
		ORDER BY scheduled_for ASC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &notifications, query, now, limit)
	return notifications, err
}

// MarkSent only touches unsent rows, so a concurrent or repeated sweep can
// never un-send or re-stamp a notification.
func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `UPDATE notifications SET is_sent = true, sent_at = $2 WHERE id = $1 AND is_sent = false`
	_, err := r.db.ExecContext(ctx, query, id, sentAt)
	return err
}

func (r *notificationRepository) UpdateDelivery(ctx context.Context, id uuid.UUID, channelsSent []string, status json.RawMessage) error {
	query := `UPDATE notifications SET channels_sent = $2, delivery_status = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, pq.Array(channelsSent), status)
	return err
}

// DeleteUnsentByMeeting removes pending reminder rows for a meeting. Sent
// rows are history and stay untouched.
func (r *notificationRepository) DeleteUnsentByMeeting(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE metadata->>'meeting_id' = $1 AND is_sent = false AND scheduled_for IS NOT NULL`

	result, err := r.db.ExecContext(ctx, query, meetingID.String())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

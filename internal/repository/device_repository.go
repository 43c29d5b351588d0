package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DeviceRepository holds push subscription tokens registered by client apps.
type DeviceRepository interface {
	ActiveTokens(ctx context.Context, recipientID uuid.UUID) ([]string, error)
	Deactivate(ctx context.Context, token string) error
}

type deviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) ActiveTokens(ctx context.Context, recipientID uuid.UUID) ([]string, error) {
	var tokens []string
	query := `SELECT device_token FROM devices WHERE user_id = $1 AND is_active = true`

	err := r.db.SelectContext(ctx, &tokens, query, recipientID)
	return tokens, err
}

func (r *deviceRepository) Deactivate(ctx context.Context, token string) error {
	query := `UPDATE devices SET is_active = false, updated_at = NOW() WHERE device_token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"talktime/internal/domain"
)

// UserRepository is a read-only view over the identity/profile store owned
// by the user-management component. Volunteers and students live in separate
// tables, so lookups are keyed by (id, role).
type UserRepository interface {
	GetProfile(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Profile, error)
	GetPreferences(ctx context.Context, id uuid.UUID) (*domain.Preferences, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetProfile(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Profile, error) {
	var table string
	switch role {
	case domain.RoleVolunteer:
		table = "volunteers"
	case domain.RoleStudent:
		table = "students"
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var profile domain.Profile
	query := fmt.Sprintf(`SELECT id, full_name, email, phone, timezone FROM %s WHERE id = $1`, table)

	err := r.db.GetContext(ctx, &profile, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile.Role = role
	return &profile, nil
}

func (r *userRepository) GetPreferences(ctx context.Context, id uuid.UUID) (*domain.Preferences, error) {
	var raw json.RawMessage
	query := `SELECT preferences FROM notification_preferences WHERE user_id = $1`

	err := r.db.GetContext(ctx, &raw, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("malformed preferences for user %s: %w", id, err)
	}
	return &prefs, nil
}
